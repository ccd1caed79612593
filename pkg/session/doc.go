/*
Package session orchestrates compute passes against persisted sessions.

A Manager loads a session from a ports.StateStore, runs the engine on it
and saves the new state with an incremented revision. Passes on the same
session key are serialized by an in-process lock and, when configured, by a
ports.DistributedLocker shared between replicas. Passes on different keys
never wait on each other.
*/
package session
