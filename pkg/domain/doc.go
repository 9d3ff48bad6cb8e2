/*
Package domain contains the core domain models of the pageflow engine.

It defines the immutable flow graph, the serialisable conversation record, the
lifecycle hooks and the error kinds shared by every other package. This
package is kept pure and free of external dependencies like I/O or
persistence, following Hexagonal Architecture principles.

# Key Entities

  - Graph: The immutable description of one flow type (states, transitions, initial and final states).
  - Transition: A directed edge keyed by (From, Event).
  - Record: The persisted snapshot of a Conversation (cursor + attributes).
  - LifecycleHooks: Callbacks fired by the binder for observability.
*/
package domain
