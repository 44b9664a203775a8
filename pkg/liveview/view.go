// Package liveview собирает локальное представление live-таблицы посещаемости:
// полный снапшот плюс поток частичных обновлений.
//
// При каждом (пере)подключении Client сначала открывает поток и только потом
// берёт свежий снапшот. Порядок намеренно обратный "снапшот, затем подписка":
// событие между двумя шагами не теряется, а попадает в очередь сессии.
// Если оно уже учтено в снапшоте, повторное применение ничего не меняет
// (seq-дедупликация в пределах потока, для entry_time побеждает более позднее).
package liveview

import (
	"sort"
	"strings"
	"sync"
	"time"
)

// Row — строка снапшота GET /api/attendees/live.
type Row struct {
	ID                  string     `json:"id"`
	Name                string     `json:"name"`
	Email               string     `json:"email"`
	Mobile              string     `json:"mobile"`
	Batch               string     `json:"batch"`
	CheckedIn           bool       `json:"checked_in"`
	EntryTime           *time.Time `json:"entry_time"`
	QREmailStatus       string     `json:"qr_email_status"`
	QRWhatsAppStatus    string     `json:"qr_whatsapp_status"`
	QRLastError         string     `json:"qr_last_error"`
	EntryEmailStatus    string     `json:"entry_email_status"`
	EntryWhatsAppStatus string     `json:"entry_whatsapp_status"`
}

// Update — сообщение live-потока; nil-поля строку не трогают.
type Update struct {
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

const (
	TypeConnected = "connected"
	TypeHeartbeat = "heartbeat"
)

func (u Update) control() bool {
	return u.Type == TypeConnected || u.Type == TypeHeartbeat
}

type Stats struct {
	Total     int
	CheckedIn int
	Pending   int
}

// Query — фильтр поиска; пустые поля не ограничивают.
type Query struct {
	Text      string // подстрока в name/email/mobile/batch, без учёта регистра
	Batch     string
	CheckedIn *bool
}

// View — согласованная карта участников. Безопасна для конкурентного использования.
type View struct {
	mu      sync.RWMutex
	rows    map[string]Row
	order   []string
	lastSeq uint64
}

func NewView() *View {
	return &View{rows: make(map[string]Row)}
}

// Load полностью заменяет состояние. Только снапшот добавляет новых участников.
func (v *View) Load(snapshot []Row) {
	rows := make(map[string]Row, len(snapshot))
	order := make([]string, 0, len(snapshot))
	for _, r := range snapshot {
		if r.ID == "" {
			continue
		}
		if _, dup := rows[r.ID]; !dup {
			order = append(order, r.ID)
		}
		rows[r.ID] = r
	}

	v.mu.Lock()
	v.rows = rows
	v.order = order
	v.lastSeq = 0
	v.mu.Unlock()
}

// Apply сливает обновление в существующую строку. Возвращает true, если строка изменилась.
func (v *View) Apply(u Update) bool {
	if u.control() || u.AttendeeID == "" {
		return false
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	if u.Seq != 0 {
		if u.Seq <= v.lastSeq {
			return false
		}
		v.lastSeq = u.Seq
	}

	row, ok := v.rows[u.AttendeeID]
	if !ok {
		return false
	}
	next := merge(row, u)
	if next == row {
		return false
	}
	v.rows[u.AttendeeID] = next
	return true
}

func merge(row Row, u Update) Row {
	if u.CheckedIn != nil {
		row.CheckedIn = *u.CheckedIn
	}
	if u.EntryTime != nil {
		if row.EntryTime == nil || u.EntryTime.After(*row.EntryTime) {
			t := *u.EntryTime
			row.EntryTime = &t
		}
	}
	setIf(&row.QREmailStatus, u.QREmailStatus)
	setIf(&row.QRWhatsAppStatus, u.QRWhatsAppStatus)
	setIf(&row.QRLastError, u.QRLastError)
	setIf(&row.EntryEmailStatus, u.EntryEmailStatus)
	setIf(&row.EntryWhatsAppStatus, u.EntryWhatsAppStatus)
	return row
}

func setIf(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

func (v *View) Get(id string) (Row, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	r, ok := v.rows[id]
	return r, ok
}

// Rows — копия строк в порядке снапшота.
func (v *View) Rows() []Row {
	v.mu.RLock()
	defer v.mu.RUnlock()
	out := make([]Row, 0, len(v.order))
	for _, id := range v.order {
		out = append(out, v.rows[id])
	}
	return out
}

// Filter не меняет состояние: работает по копии Rows().
func (v *View) Filter(q Query) []Row {
	text := strings.ToLower(strings.TrimSpace(q.Text))
	batch := strings.ToLower(strings.TrimSpace(q.Batch))

	rows := v.Rows()
	out := rows[:0]
	for _, r := range rows {
		if batch != "" && strings.ToLower(r.Batch) != batch {
			continue
		}
		if q.CheckedIn != nil && r.CheckedIn != *q.CheckedIn {
			continue
		}
		if text != "" && !matches(r, text) {
			continue
		}
		out = append(out, r)
	}
	return out
}

func matches(r Row, text string) bool {
	for _, f := range []string{r.Name, r.Email, r.Mobile, r.Batch} {
		if strings.Contains(strings.ToLower(f), text) {
			return true
		}
	}
	return false
}

func (v *View) Stats() Stats {
	v.mu.RLock()
	defer v.mu.RUnlock()
	s := Stats{Total: len(v.rows)}
	for _, r := range v.rows {
		if r.CheckedIn {
			s.CheckedIn++
		}
	}
	s.Pending = s.Total - s.CheckedIn
	return s
}

// RecentlyCheckedIn — отмеченные участники, последние первыми.
func (v *View) RecentlyCheckedIn(limit int) []Row {
	rows := v.Filter(Query{CheckedIn: ptr(true)})
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i].EntryTime, rows[j].EntryTime
		if a == nil || b == nil {
			return b == nil && a != nil
		}
		return a.After(*b)
	})
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}
	return rows
}

func ptr[T any](v T) *T { return &v }
