package storage

type Account struct {
	ID                  string
	TenantID            string
	Name                string
	Type                string
	Code                string
	OpeningBalanceCents int64
	Active              bool
	CreatedAt           string
}

type Category struct {
	ID       string
	TenantID string
	Name     string
	ParentID string
	IsSystem bool
	Position int64
}

type Movement struct {
	ID           string
	TenantID     string
	AccountID    string
	Date         string
	Type         string
	AmountCents  int64
	CategoryID   string
	Note         string
	Locked       bool
	SpecialKind  string
	TransferLink string
	CreatedAt    string
}

type Attachment struct {
	ID          string
	TenantID    string
	MovementID  string
	FileName    string
	ContentType string
	Size        int64
	Data        []byte
	UploadedAt  string
}

type AccountTotals struct {
	InflowCents  int64
	OutflowCents int64
}
