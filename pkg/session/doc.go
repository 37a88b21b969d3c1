/*
Package session coordinates access to running sessions and their recordings.

Manager is the registry that control surfaces use to find a session by id,
and it serializes archive writes per report, optionally across replicas via
a ports.DistributedLocker. LoginSlot is the single in-flight login of one
session.
*/
package session
