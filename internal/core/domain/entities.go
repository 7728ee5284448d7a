package domain

// Role represents a member's role within a chama
type Role string

const (
	RoleChairperson Role = "CHAIRPERSON"
	RoleTreasurer   Role = "TREASURER"
	RoleSecretary   Role = "SECRETARY"
	RoleMember      Role = "MEMBER"
)

// OfficialRoles are the roles allowed to manage cycles
var OfficialRoles = []Role{RoleChairperson, RoleTreasurer, RoleSecretary}

// TreasurerOnly is the role set for payout operations
var TreasurerOnly = []Role{RoleTreasurer}

// AnyRole matches every active member of a chama
var AnyRole = []Role{RoleChairperson, RoleTreasurer, RoleSecretary, RoleMember}

// IsValid reports whether r is a known role
func (r Role) IsValid() bool {
	for _, known := range AnyRole {
		if r == known {
			return true
		}
	}
	return false
}

// Frequency is how often a cycle round happens
type Frequency string

const (
	FrequencyWeekly   Frequency = "WEEKLY"
	FrequencyBiweekly Frequency = "BIWEEKLY"
	FrequencyMonthly  Frequency = "MONTHLY"
)

// IsValid reports whether f is a known frequency
func (f Frequency) IsValid() bool {
	return f == FrequencyWeekly || f == FrequencyBiweekly || f == FrequencyMonthly
}

// RosterMethod decides how roster positions are assigned
type RosterMethod string

const (
	RosterRandom RosterMethod = "RANDOM"
	RosterTrust  RosterMethod = "TRUST"
	RosterManual RosterMethod = "MANUAL"
)

// IsValid reports whether m is a known roster method
func (m RosterMethod) IsValid() bool {
	return m == RosterRandom || m == RosterTrust || m == RosterManual
}

// CycleStatus is the lifecycle state of a ROSCA cycle
type CycleStatus string

const (
	CyclePending   CycleStatus = "PENDING"
	CycleActive    CycleStatus = "ACTIVE"
	CycleCompleted CycleStatus = "COMPLETED"
	CycleCancelled CycleStatus = "CANCELLED"
)

var cycleTransitions = map[CycleStatus][]CycleStatus{
	CyclePending: {CycleActive, CycleCancelled},
	CycleActive:  {CycleCompleted},
}

// CanTransitionTo reports whether the cycle state machine allows s -> next
func (s CycleStatus) CanTransitionTo(next CycleStatus) bool {
	for _, allowed := range cycleTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transitions are possible
func (s CycleStatus) IsTerminal() bool {
	return s == CycleCompleted || s == CycleCancelled
}

// RosterStatus is the payout state of a roster entry. PAID is terminal.
type RosterStatus string

const (
	RosterPending RosterStatus = "PENDING"
	RosterPaid    RosterStatus = "PAID"
)

// SwapStatus is the state of a position swap request
type SwapStatus string

const (
	SwapPending  SwapStatus = "PENDING"
	SwapApproved SwapStatus = "APPROVED"
	SwapRejected SwapStatus = "REJECTED"
	SwapExpired  SwapStatus = "EXPIRED"
)

// IsTerminal reports whether the swap request has been resolved
func (s SwapStatus) IsTerminal() bool {
	return s != SwapPending
}

// TransactionKind classifies ledger transactions
type TransactionKind string

const (
	TxRoscaPayout   TransactionKind = "ROSCA_PAYOUT"
	TxContribution  TransactionKind = "CONTRIBUTION"
	TxWelfarePayout TransactionKind = "WELFARE_PAYOUT"
	TxLoanDisbursal TransactionKind = "LOAN_DISBURSEMENT"
	TxLoanRepayment TransactionKind = "LOAN_REPAYMENT"
)

// Chama visibility
const (
	VisibilityPrivate = "PRIVATE"
	VisibilityPublic  = "PUBLIC"
)

// Trust tiers used by the TRUST roster method
const (
	TrustHighMin   = 80
	TrustMediumMin = 60
	DefaultTrust   = 50
)

// MaxPaymentProofLength bounds the payout proof string
const MaxPaymentProofLength = 512

// MinCycleMembers is the smallest roster a cycle can have
const MinCycleMembers = 2
