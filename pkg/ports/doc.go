/*
Package ports defines the driven ports (interfaces) of the vitrine client.

These interfaces decouple the session engine from transports, storage backends
and control surfaces.

# Key Interfaces

  - Gateway: owns the connection (live socket or static replay) and delivers inbound envelopes.
  - GatewayListener: the callbacks a Gateway drives; implemented by the session.
  - Authenticator: supplies credentials when the server demands a login.
  - EventRelay: receives session events (compile errors, script changes) for dialog collaborators.
  - ReportSource / ReportArchive: recorded reports used for replay.
  - Controller: what control surfaces (HTTP, MCP, CLI) may ask of a running session.
  - DistributedLocker: serializes archive writes across replicas.
*/
package ports
