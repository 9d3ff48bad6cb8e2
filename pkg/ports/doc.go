/*
Package ports defines the driven ports (interfaces) for the pageflow engine.

These interfaces decouple the conversation core from external implementations,
allowing the binder to work with various session backends, id sources and
routing schemes.

# Key Interfaces

  - ConversationStore: Session-scoped persistence of conversation records.
  - DistributedLocker: Provides distributed locking for concurrent access to one conversation.
  - RandomSource: Secure random bytes used to seed conversation ids.
  - RouteResolver: Maps a dispatch target's route to a flow id and action name.
*/
package ports
