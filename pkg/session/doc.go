/*
Package session serialises access to individual conversations.

A request holds the lock of its conversation from the moment the binder looks
the conversation up until the post-dispatch capture is written back, so two
concurrent requests carrying the same conversation id never interleave their
read-modify-write cycles. Locks are reference counted in process memory and can
additionally be backed by a ports.DistributedLocker when several replicas share
one session store.
*/
package session
