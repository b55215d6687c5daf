package op

import "time"

// FieldTypeConcealed marks field values that must never be stored in plaintext.
const FieldTypeConcealed = "CONCEALED"

// Vault identifies the vault an item belongs to.
type Vault struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// URL is one of an item's attached URLs.
type URL struct {
	Label   string `json:"label,omitempty"`
	Primary bool   `json:"primary,omitempty"`
	Href    string `json:"href"`
}

// Field is a single item field as reported by the CLI. Entropy and
// PasswordDetails are password metadata the CLI attaches to generated
// passwords; they are stripped before anything is persisted.
type Field struct {
	ID              string           `json:"id"`
	Type            string           `json:"type"`
	Label           string           `json:"label,omitempty"`
	Value           string           `json:"value,omitempty"`
	Reference       string           `json:"reference,omitempty"`
	Entropy         float64          `json:"entropy,omitempty"`
	PasswordDetails *PasswordDetails `json:"password_details,omitempty"`
}

// PasswordDetails is the CLI's password strength metadata.
type PasswordDetails struct {
	Entropy   int    `json:"entropy,omitempty"`
	Generated bool   `json:"generated,omitempty"`
	Strength  string `json:"strength,omitempty"`
}

// Item is the structure returned by the 1Password CLI for both item
// listings (no fields) and full item fetches.
type Item struct {
	ID             string    `json:"id"`
	Title          string    `json:"title"`
	Category       string    `json:"category"`
	AdditionalInfo string    `json:"additional_information,omitempty"`
	Vault          Vault     `json:"vault"`
	Fields         []Field   `json:"fields,omitempty"`
	URLs           []URL     `json:"urls,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// UsageRow is one raw rate-limit row from `op service-account ratelimit`.
// Reset is the number of seconds until the limit window resets.
type UsageRow struct {
	Type      string `json:"type"`
	Action    string `json:"action"`
	Limit     int    `json:"limit"`
	Used      int    `json:"used"`
	Remaining int    `json:"remaining"`
	Reset     int    `json:"reset"`
}
