package live

import "time"

// Типы сообщений live-потока.
const (
	TypeConnected      = "connected"       // служебное, один раз в начале потока
	TypeHeartbeat      = "heartbeat"       // служебное, для транспортов без ping-фреймов
	TypeCheckedIn      = "checked_in"      // участник отмечен
	TypeDeliveryStatus = "delivery_status" // обновились статусы доставки
)

// Event — частичное обновление строки участника. nil-поля не меняются.
type Event struct {
	Seq        uint64 `json:"seq,omitempty"`
	Type       string `json:"type"`
	AttendeeID string `json:"attendee_id,omitempty"`

	CheckedIn *bool      `json:"checked_in,omitempty"`
	EntryTime *time.Time `json:"entry_time,omitempty"`

	QREmailStatus       *string `json:"qr_email_status,omitempty"`
	QRWhatsAppStatus    *string `json:"qr_whatsapp_status,omitempty"`
	QRLastError         *string `json:"qr_last_error,omitempty"`
	EntryEmailStatus    *string `json:"entry_email_status,omitempty"`
	EntryWhatsAppStatus *string `json:"entry_whatsapp_status,omitempty"`
}

func Connected() Event { return Event{Type: TypeConnected} }

func CheckedIn(attendeeID string, at time.Time) Event {
	yes := true
	at = at.UTC()
	return Event{
		Type:       TypeCheckedIn,
		AttendeeID: attendeeID,
		CheckedIn:  &yes,
		EntryTime:  &at,
	}
}

// EntryDelivery — статусы отправки входного подтверждения.
func EntryDelivery(attendeeID, email, whatsapp string) Event {
	return Event{
		Type:                TypeDeliveryStatus,
		AttendeeID:          attendeeID,
		EntryEmailStatus:    &email,
		EntryWhatsAppStatus: &whatsapp,
	}
}

// QRDelivery — статусы отправки QR-кода.
func QRDelivery(attendeeID, email, whatsapp, lastError string) Event {
	return Event{
		Type:             TypeDeliveryStatus,
		AttendeeID:       attendeeID,
		QREmailStatus:    &email,
		QRWhatsAppStatus: &whatsapp,
		QRLastError:      &lastError,
	}
}
