package delivery

import (
	"fmt"

	"chronovault/internal/storage"
)

// Subject is the fixed notification subject line.
const Subject = "ChronoVault: Your Time-Locked Message Has Arrived!"

const renderTimeLayout = "2006-01-02 15:04:05"

// Render produces the notification body for a message.
//
// The body is a deterministic function of content, created time, and
// scheduled time; both timestamps are always included so a recipient can
// trace when the message was written and when it was meant to arrive.
func Render(m *storage.TimeMessage) string {
	return fmt.Sprintf(`Hello!

You have received a time-locked message from ChronoVault:

Message created on: %s
Scheduled delivery: %s

Your Message:
%s

---
This message was sent by ChronoVault - Time-Locked Message Delivery App
`,
		m.CreatedAt.Format(renderTimeLayout),
		m.DeliveryAt.Format(renderTimeLayout),
		m.Content,
	)
}
