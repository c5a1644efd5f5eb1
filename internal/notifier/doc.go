// Package notifier delivers rendered messages to recipients.
//
// The delivery engine only depends on the two-valued Send contract
// (nil error = delivered to the transport, non-nil = failed); which
// transport actually carries the message is a configuration choice.
//
// # Channels
//
//   - "smtp": email via a configured relay (the classic channel)
//   - "telegram": chat message via the Bot API (recipient is a chat id)
//   - "log": writes the notification to the logger (dry runs, tests)
package notifier
