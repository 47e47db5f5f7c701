/*
Package domain contains the core domain models of the tripwire moderation bot.

It defines the inbound events, the command vocabulary, the sync state of the
keyword list, and the observability hooks. This package is kept pure and free
of external dependencies like I/O or persistence.

# Key Entities

  - Event: An inbound platform event, either a TextMessage or a MemberJoined.
  - Command: A parsed operator command (kwadd, kwdel, savekeywords, ...).
  - SyncState: Whether local keywords match the last successful remote sync.
  - SyncError: A tagged failure of the two-phase remote update.
*/
package domain
