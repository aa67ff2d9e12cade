// Package domain holds the entities of the proof-aggregation pipeline:
// Protocol, Circuit, Proof, Task, Superproof, ReductionImage and their
// status lifecycles.
package domain

import "time"

// CircuitStatus is the lifecycle of a registered circuit.
type CircuitStatus string

const (
	CircuitNotPicked                    CircuitStatus = "NotPicked"
	CircuitInProgress                   CircuitStatus = "InProgress"
	CircuitCompleted                    CircuitStatus = "Completed"
	CircuitFailed                       CircuitStatus = "Failed"
	CircuitSmartContractRegistrationPending CircuitStatus = "SmartContractRegistrationPending"
)

// ProofStatus is the lifecycle of a submitted proof.
type ProofStatus string

const (
	ProofNotFound         ProofStatus = "NotFound"
	ProofRegistered       ProofStatus = "Registered"
	ProofReducing         ProofStatus = "Reducing"
	ProofReduced          ProofStatus = "Reduced"
	ProofAggregating      ProofStatus = "Aggregating"
	ProofAggregated       ProofStatus = "Aggregated"
	ProofVerified         ProofStatus = "Verified"
	ProofReductionFailed  ProofStatus = "ReductionFailed"
	ProofAggregationFailed ProofStatus = "AggregationFailed"
)

// TaskKind distinguishes a circuit-reduction task from a proof-generation one.
type TaskKind string

const (
	TaskCircuitReduction TaskKind = "CircuitReduction"
	TaskProofGeneration  TaskKind = "ProofGeneration"
)

// TaskStatus is the lifecycle shared by both task kinds.
type TaskStatus string

const (
	TaskNotPicked  TaskStatus = "NotPicked"
	TaskInProgress TaskStatus = "InProgress"
	TaskCompleted  TaskStatus = "Completed"
	TaskFailed     TaskStatus = "Failed"
)

// SuperproofStatus is the lifecycle of a batch-aggregation superproof.
type SuperproofStatus string

const (
	SuperproofNotStarted     SuperproofStatus = "NotStarted"
	SuperproofInProgress     SuperproofStatus = "InProgress"
	SuperproofProvingDone    SuperproofStatus = "ProvingDone"
	SuperproofSubmittedOnchain SuperproofStatus = "SubmittedOnchain"
	SuperproofFailed         SuperproofStatus = "Failed"
)

// Protocol is a tenant of the aggregation service.
type Protocol struct {
	Name             string
	AuthToken        string
	IsMaster         bool
	AllowRepeatProof bool
	CreatedAt        time.Time
}

// Circuit is a tenant-registered verifying key plus metadata.
type Circuit struct {
	Hash             [32]byte
	Scheme           Scheme
	VKPath           string
	NPublicInputs    int
	ReductionImageID *string
	Status           CircuitStatus
	ProtocolName     string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Proof is a tenant-submitted cryptographic artifact.
type Proof struct {
	ID                  int64
	Hash                [32]byte
	CircuitHash         [32]byte
	ProofPath           string
	PisPath             string
	PublicInputsJSON    []byte
	Status              ProofStatus
	ReductionSessionID  *string
	CyclesUsed          *int64
	ReductionTimeS      *float64
	SuperproofID        *int64
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// Task drives a circuit through reduction, or a proof through generation.
type Task struct {
	ID              int64
	UserCircuitHash [32]byte
	Kind            TaskKind
	ProofHash       *[32]byte
	ProofID         *int64
	Status          TaskStatus
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Superproof is the on-chain-anchored artifact combining both lanes.
type Superproof struct {
	ID                         int64
	ProofIDs                   []int64
	Status                     SuperproofStatus
	R0LeavesPath               *string
	SP1LeavesPath              *string
	R0Root                     *[32]byte
	SP1Root                    *[32]byte
	SuperproofRoot             *[32]byte
	AggregatedProofPath        *string
	AggregatedPublicInputsPath *string
	AggTimeS                   *float64
	CyclesUsed                 *int64
	TransactionHash            *string
	GasCostGwei                *float64
	EthPriceUSD                *float64
	TotalCostUSD               *float64
	OnchainSubmissionTime      *time.Time
	CreatedAt                  time.Time
	UpdatedAt                  time.Time
}

// ReductionImage is an external reducer program, seeded out of band.
type ReductionImage struct {
	ImageID            string
	ElfPath            string
	VerifyingID        [8]uint32
	Scheme             *Scheme
	IsAggregationImage bool
}

// CostSaved records the gas savings of one on-chain submission.
type CostSaved struct {
	SuperproofID    int64
	BatchCardinality int
	GasUsed         uint64
	GasSaved        int64
	CreatedAt       time.Time
}
