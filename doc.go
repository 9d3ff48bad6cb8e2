/*
Package pageflow is a session-bound conversation engine for multi-page forms and wizards.

A flow is an immutable finite state machine. Every user walking through a flow
owns a conversation: a private copy of the state machine plus a bag of
attributes, stored in the user's session and addressed by an opaque id that
travels with each request.

# Concept

The host dispatch pipeline (an HTTP router, a CLI loop...) calls the binder
around every handler invocation:

  - Pre resolves the flow and action of the target, finds or creates the
    conversation, checks that the action is allowed in the current state and
    restores the handler's stateful fields.
  - The handler runs and fires events on the conversation.
  - Post captures the stateful fields back into the conversation, or discards
    the conversation once its flow reached a final state.

Requests on the same conversation are serialised from Pre to Post.

# Key Features

  - Deterministic flows: the same state and event always lead to the same state.
  - Hexagonal Architecture: session stores, locks, ids and routing are ports.
  - Typed handler metadata: guard tables and stateful fields registered with generics.
  - Observability: lifecycle hooks feeding slog and Prometheus.

# Usage

	package main

	import (
		"log"
		"net/http"

		"github.com/aretw0/pageflow"
		pfhttp "github.com/aretw0/pageflow/pkg/adapters/http"
	)

	func main() {
		eng, err := pageflow.New("./flows", pageflow.WithHandlers(wizardMetadata()))
		if err != nil {
			log.Fatal(err)
		}

		srv := pfhttp.NewServer(eng.Binder())
		srv.Handle(http.MethodGet, "/signup", "signup:index", func() http.Handler { return &Wizard{} })
		log.Fatal(http.ListenAndServe(":8080", srv))
	}
*/
package pageflow
