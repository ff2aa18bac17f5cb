/*
Package session routes host events of many chats to one sam.Manager per chat.

A host that keeps several chats open builds a Hub with a Factory that opens the
stores of a chat. Events for the same chat are handled one at a time; events
for different chats run in parallel. With a ports.Locker the exclusion also
holds across processes sharing the same backend. Locks are not reentrant, so
the Hub's locker must not share its key prefix with a store's locker.
*/
package session
