/*
Package ports defines the driven ports (interfaces) of the tripwire bot.

These interfaces decouple the moderation core from the chat platform and from
the remote configuration provider, so both can be swapped or faked in tests.

# Key Interfaces

  - Syncer: Persists the keyword list remotely and triggers a redeploy.
  - Messenger: Delivers a reply to a chat.
  - MemberRemover: Removes a member from a chat.
  - DistributedLocker: Serializes remote syncs across replicas.
*/
package ports
