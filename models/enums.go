package models

// Status enums are stored as plain strings for DB safety and easier evolution.

type BatchStatus string

const (
	BatchStatusAvailable      BatchStatus = "AVAILABLE"
	BatchStatusReserved       BatchStatus = "RESERVED"
	BatchStatusBlocked        BatchStatus = "BLOCKED"
	BatchStatusQualityPending BatchStatus = "QUALITY_PENDING"
	BatchStatusSplit          BatchStatus = "SPLIT"
	BatchStatusConsumed       BatchStatus = "CONSUMED"
	BatchStatusScrapped       BatchStatus = "SCRAPPED"
)

type OperationStatus string

// A partially confirmed operation is persisted as IN_PROGRESS; the partial
// flag lives on the confirmation record.
const (
	OperationStatusNotStarted OperationStatus = "NOT_STARTED"
	OperationStatusReady      OperationStatus = "READY"
	OperationStatusInProgress OperationStatus = "IN_PROGRESS"
	OperationStatusBlocked    OperationStatus = "BLOCKED"
	OperationStatusConfirmed  OperationStatus = "CONFIRMED"
)

type ConfirmationStatus string

const (
	ConfirmationStatusConfirmed          ConfirmationStatus = "CONFIRMED"
	ConfirmationStatusPartiallyConfirmed ConfirmationStatus = "PARTIALLY_CONFIRMED"
	ConfirmationStatusRejected           ConfirmationStatus = "REJECTED"
)

type AllocationStatus string

const (
	AllocationStatusAllocated AllocationStatus = "ALLOCATED"
	AllocationStatusReleased  AllocationStatus = "RELEASED"
)

type BatchRelationType string

const (
	BatchRelationTypeSplit     BatchRelationType = "SPLIT"
	BatchRelationTypeMerge     BatchRelationType = "MERGE"
	BatchRelationTypeTransform BatchRelationType = "TRANSFORM"
)

type ProcessStatus string

const (
	ProcessStatusActive    ProcessStatus = "ACTIVE"
	ProcessStatusCompleted ProcessStatus = "COMPLETED"
	ProcessStatusCancelled ProcessStatus = "CANCELLED"
)

type HoldStatus string

const (
	HoldStatusActive   HoldStatus = "ACTIVE"
	HoldStatusReleased HoldStatus = "RELEASED"
)

type HoldReferenceType string

const (
	HoldReferenceTypeOperation HoldReferenceType = "OPERATION"
	HoldReferenceTypeProcess   HoldReferenceType = "PROCESS"
)

// SequenceResetFrequency controls the reset bucket of a batch number sequence.
type SequenceResetFrequency string

const (
	SequenceResetDaily   SequenceResetFrequency = "DAILY"
	SequenceResetMonthly SequenceResetFrequency = "MONTHLY"
	SequenceResetYearly  SequenceResetFrequency = "YEARLY"
	SequenceResetNever   SequenceResetFrequency = "NEVER"
)

// BatchKind selects the numbering family a generated batch number belongs to.
type BatchKind string

const (
	BatchKindRawMaterial BatchKind = "RAW_MATERIAL"
	BatchKindProduction  BatchKind = "PRODUCTION"
)

type BatchAdjustmentType string

const (
	BatchAdjustmentTypeCycleCount BatchAdjustmentType = "CYCLE_COUNT"
	BatchAdjustmentTypeDamage     BatchAdjustmentType = "DAMAGE"
	BatchAdjustmentTypeCorrection BatchAdjustmentType = "CORRECTION"
	BatchAdjustmentTypeOther      BatchAdjustmentType = "OTHER"
)

func (t BatchAdjustmentType) Valid() bool {
	switch t {
	case BatchAdjustmentTypeCycleCount, BatchAdjustmentTypeDamage, BatchAdjustmentTypeCorrection, BatchAdjustmentTypeOther:
		return true
	}
	return false
}

func (f SequenceResetFrequency) Valid() bool {
	switch f {
	case SequenceResetDaily, SequenceResetMonthly, SequenceResetYearly, SequenceResetNever:
		return true
	}
	return false
}
