/*
Package domain contains the core data model of the vitrine client.

It defines the entities that cross the connection boundary and the state that the
engine keeps for one session. The package is kept pure and free of I/O so that
every other layer (document store, run-state machine, transports, archives) can
depend on it without pulling in adapters.

# Key Entities

  - Element: one render slot of the report, stamped with the ReportID that produced it.
  - Payload: the closed set of element variants (text, dataFrame, chart, ...).
  - Inbound / Outbound: tagged envelopes received from and sent to the server.
  - ReportRunState / ConnectionState: the two state enums the engine reasons about.
  - Recording: an archived report (ordered inbound envelopes) used for replay.
*/
package domain
