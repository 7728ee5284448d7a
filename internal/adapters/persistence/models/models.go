package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ============================================================
// Identity: users and sessions
// ============================================================

// User represents users table
type User struct {
	ID           uint    `gorm:"primaryKey" json:"id"`
	Email        string  `gorm:"uniqueIndex;size:100;not null" json:"email"`
	Phone        string  `gorm:"uniqueIndex;size:20;not null" json:"phone"`
	PasswordHash string  `gorm:"size:255;not null" json:"-"`
	FirstName    string  `gorm:"size:100;not null" json:"first_name"`
	LastName     string  `gorm:"size:100;not null" json:"last_name"`
	NationalID   *string `gorm:"size:20" json:"national_id,omitempty"`
	TrustScore   int     `gorm:"not null;default:50" json:"trust_score"`

	EmailVerified      bool       `gorm:"default:false" json:"email_verified"`
	EmailVerifyHash    *string    `gorm:"size:64;index" json:"-"`
	EmailVerifyExpires *time.Time `json:"-"`
	EmailVerifySentAt  *time.Time `json:"-"`

	PhoneVerified    bool       `gorm:"default:false" json:"phone_verified"`
	PhoneOTPHash     *string    `gorm:"column:phone_otp_hash;size:64" json:"-"`
	PhoneOTPExpires  *time.Time `gorm:"column:phone_otp_expires" json:"-"`
	PhoneOTPSentAt   *time.Time `gorm:"column:phone_otp_sent_at" json:"-"`
	PhoneOTPAttempts int        `gorm:"column:phone_otp_attempts;default:0" json:"-"`

	ResetTokenHash    *string    `gorm:"size:64;index" json:"-"`
	ResetTokenExpires *time.Time `json:"-"`
	ResetSentAt       *time.Time `json:"-"`

	IsActive    bool           `gorm:"default:true" json:"is_active"`
	LastLoginAt *time.Time     `json:"last_login_at,omitempty"`
	CreatedAt   time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
}

func (User) TableName() string {
	return "users"
}

// UserResponse DTO
type UserResponse struct {
	ID            uint       `json:"id"`
	Email         string     `json:"email"`
	Phone         string     `json:"phone"`
	FirstName     string     `json:"first_name"`
	LastName      string     `json:"last_name"`
	TrustScore    int        `json:"trust_score"`
	EmailVerified bool       `json:"email_verified"`
	PhoneVerified bool       `json:"phone_verified"`
	IsActive      bool       `json:"is_active"`
	LastLoginAt   *time.Time `json:"last_login_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

func (u *User) ToResponse() *UserResponse {
	return &UserResponse{
		ID:            u.ID,
		Email:         u.Email,
		Phone:         u.Phone,
		FirstName:     u.FirstName,
		LastName:      u.LastName,
		TrustScore:    u.TrustScore,
		EmailVerified: u.EmailVerified,
		PhoneVerified: u.PhoneVerified,
		IsActive:      u.IsActive,
		LastLoginAt:   u.LastLoginAt,
		CreatedAt:     u.CreatedAt,
	}
}

// FullName joins first and last name
func (u *User) FullName() string {
	if u.LastName == "" {
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}

// RefreshToken represents refresh_tokens table
type RefreshToken struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	UserID       uint       `gorm:"index;not null" json:"user_id"`
	TokenHash    string     `gorm:"size:64;not null;uniqueIndex" json:"-"`
	TokenID      string     `gorm:"size:36;not null;index" json:"-"`
	Fingerprint  string     `gorm:"size:64;not null;index" json:"-"`
	UserAgent    string     `gorm:"size:255" json:"user_agent"`
	IPAddress    string     `gorm:"size:45" json:"ip_address"`
	ExpiresAt    time.Time  `gorm:"not null;index" json:"expires_at"`
	CreatedAt    time.Time  `gorm:"autoCreateTime" json:"created_at"`
	RevokedAt    *time.Time `gorm:"index" json:"revoked_at"`
	ReplacedByID *uint      `json:"-"`
}

func (RefreshToken) TableName() string {
	return "refresh_tokens"
}

func (rt *RefreshToken) IsRevoked() bool {
	return rt.RevokedAt != nil
}

func (rt *RefreshToken) IsExpiredAt(now time.Time) bool {
	return !now.Before(rt.ExpiresAt)
}

// ============================================================
// Chamas and memberships
// ============================================================

// Chama represents chamas table
type Chama struct {
	ID          uint            `gorm:"primaryKey" json:"id"`
	Name        string          `gorm:"size:100;not null" json:"name"`
	Description string          `gorm:"type:text" json:"description"`
	CurrentFund decimal.Decimal `gorm:"type:decimal(15,2);not null;default:0" json:"current_fund"`
	Visibility  string          `gorm:"size:10;not null;default:'PRIVATE'" json:"visibility"`
	InviteCode  string          `gorm:"size:16;uniqueIndex;not null" json:"invite_code,omitempty"`
	CreatedBy   uint            `gorm:"not null" json:"created_by"`
	CreatedAt   time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Chama) TableName() string {
	return "chamas"
}

// ChamaMember represents chama_members table
type ChamaMember struct {
	ID               uint      `gorm:"primaryKey" json:"id"`
	ChamaID          uint      `gorm:"not null;uniqueIndex:idx_chama_user" json:"chama_id"`
	UserID           uint      `gorm:"not null;uniqueIndex:idx_chama_user;index" json:"user_id"`
	Role             string    `gorm:"size:20;not null;default:'MEMBER'" json:"role"`
	IsActive         bool      `gorm:"default:true" json:"is_active"`
	RotationPosition *int      `json:"rotation_position,omitempty"`
	JoinedAt         time.Time `gorm:"autoCreateTime" json:"joined_at"`
	UpdatedAt        time.Time `gorm:"autoUpdateTime" json:"updated_at"`

	User *User `gorm:"foreignKey:UserID" json:"user,omitempty"`
}

func (ChamaMember) TableName() string {
	return "chama_members"
}

// ============================================================
// ROSCA cycles
// ============================================================

// RoscaCycle represents rosca_cycles table
type RoscaCycle struct {
	ID                 uint            `gorm:"primaryKey" json:"id"`
	ChamaID            uint            `gorm:"not null;index" json:"chama_id"`
	Name               string          `gorm:"size:100;not null" json:"cycle_name"`
	ContributionAmount decimal.Decimal `gorm:"type:decimal(15,2);not null" json:"contribution_amount"`
	Frequency          string          `gorm:"size:10;not null" json:"frequency"`
	RosterMethod       string          `gorm:"size:10;not null" json:"roster_method"`
	StartDate          time.Time       `gorm:"type:date;not null" json:"start_date"`
	EndDate            *time.Time      `json:"end_date"`
	Status             string          `gorm:"size:10;not null;default:'PENDING';index" json:"status"`
	CreatedBy          uint            `gorm:"not null" json:"created_by"`
	CreatedAt          time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt          time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (RoscaCycle) TableName() string {
	return "rosca_cycles"
}

// RosterEntry represents rosca_roster table
type RosterEntry struct {
	ID           uint            `gorm:"primaryKey" json:"id"`
	CycleID      uint            `gorm:"not null;uniqueIndex:idx_roster_cycle_position;uniqueIndex:idx_roster_cycle_user" json:"cycle_id"`
	UserID       uint            `gorm:"not null;uniqueIndex:idx_roster_cycle_user" json:"user_id"`
	Position     int             `gorm:"not null;uniqueIndex:idx_roster_cycle_position" json:"position"`
	PayoutAmount decimal.Decimal `gorm:"type:decimal(15,2);not null" json:"payout_amount"`
	Status       string          `gorm:"size:10;not null;default:'PENDING'" json:"status"`
	PayoutDate   *time.Time      `json:"payout_date"`
	PaymentProof *string         `gorm:"size:512" json:"payment_proof,omitempty"`
	CreatedAt    time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time       `gorm:"autoUpdateTime" json:"updated_at"`

	User *User `gorm:"foreignKey:UserID" json:"-"`
}

func (RosterEntry) TableName() string {
	return "rosca_roster"
}

// RosterEntryResponse is the roster view shared with every member.
// It carries no contact details.
type RosterEntryResponse struct {
	ID           uint            `json:"id"`
	UserID       uint            `json:"user_id"`
	FirstName    string          `json:"first_name"`
	LastName     string          `json:"last_name"`
	Position     int             `json:"position"`
	PayoutAmount decimal.Decimal `json:"payout_amount"`
	Status       string          `json:"status"`
	PayoutDate   *time.Time      `json:"payout_date"`
}

func (e *RosterEntry) ToResponse() *RosterEntryResponse {
	resp := &RosterEntryResponse{
		ID:           e.ID,
		UserID:       e.UserID,
		Position:     e.Position,
		PayoutAmount: e.PayoutAmount,
		Status:       e.Status,
		PayoutDate:   e.PayoutDate,
	}
	if e.User != nil {
		resp.FirstName = e.User.FirstName
		resp.LastName = e.User.LastName
	}
	return resp
}

// SwapRequest represents rosca_swap_requests table.
// PendingKey is set only while the request is PENDING; its unique index keeps
// at most one pending request per unordered pair of positions in a cycle.
type SwapRequest struct {
	ID                uint       `gorm:"primaryKey" json:"id"`
	CycleID           uint       `gorm:"not null;index" json:"cycle_id"`
	RequesterID       uint       `gorm:"not null;index" json:"requester_id"`
	RequesterPosition int        `gorm:"not null" json:"requester_position"`
	TargetPosition    int        `gorm:"not null" json:"target_position"`
	TargetUserID      uint       `gorm:"not null;index" json:"target_user_id"`
	Status            string     `gorm:"size:10;not null;default:'PENDING';index" json:"status"`
	Reason            string     `gorm:"size:500" json:"reason"`
	PendingKey        *string    `gorm:"size:64;uniqueIndex" json:"-"`
	RespondedAt       *time.Time `json:"responded_at"`
	CreatedAt         time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (SwapRequest) TableName() string {
	return "rosca_swap_requests"
}

// ============================================================
// Ledger
// ============================================================

// Contribution represents contributions table (append-only).
// CycleID is nil for contributions made outside a ROSCA cycle.
type Contribution struct {
	ID         uint            `gorm:"primaryKey" json:"id"`
	ChamaID    uint            `gorm:"not null;index" json:"chama_id"`
	CycleID    *uint           `gorm:"index:idx_contrib_cycle_user" json:"cycle_id"`
	UserID     uint            `gorm:"not null;index:idx_contrib_cycle_user" json:"user_id"`
	Amount     decimal.Decimal `gorm:"type:decimal(15,2);not null" json:"amount"`
	RecordedBy uint            `gorm:"not null" json:"recorded_by"`
	RecordedAt time.Time       `gorm:"autoCreateTime" json:"recorded_at"`
}

func (Contribution) TableName() string {
	return "contributions"
}

// Transaction represents transactions table (append-only)
type Transaction struct {
	ID                uint            `gorm:"primaryKey" json:"id"`
	ChamaID           uint            `gorm:"not null;index" json:"chama_id"`
	UserID            uint            `gorm:"not null;index" json:"user_id"`
	Amount            decimal.Decimal `gorm:"type:decimal(15,2);not null" json:"amount"`
	Kind              string          `gorm:"column:type;size:30;not null" json:"type"`
	Description       string          `gorm:"size:255" json:"description"`
	ExternalReference *string         `gorm:"size:64;uniqueIndex" json:"external_reference,omitempty"`
	CreatedAt         time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

func (Transaction) TableName() string {
	return "transactions"
}
