package types

import "errors"

// Sentinel errors for dialectc operations.
var (
	// ErrEmptyOverwrite indicates a save was refused because it would replace a
	// non-empty rule store with an empty rule set.
	ErrEmptyOverwrite = errors.New("refusing to overwrite non-empty rule store with empty rule set")

	// ErrInvalidRule indicates a rule is missing fields required for its kind.
	ErrInvalidRule = errors.New("rule is missing required fields")

	// ErrUnknownKind indicates a rule type outside segment/stmt/block/rewrite.
	ErrUnknownKind = errors.New("unknown rule kind")

	// ErrRegexTooLong indicates a rule pattern exceeds MaxRegexLength.
	ErrRegexTooLong = errors.New("rule pattern exceeds maximum length")

	// ErrTooManyMiddles indicates a block rule exceeds MaxMiddlePatterns.
	ErrTooManyMiddles = errors.New("block rule has too many middle patterns")

	// ErrUnknownVariant indicates a rule references an IR variant with no constructor.
	ErrUnknownVariant = errors.New("unknown IR variant")

	// ErrMissingField indicates a required constructor field captured nothing.
	ErrMissingField = errors.New("required field not captured")

	// ErrListShape indicates a list capture was routed to a scalar field.
	ErrListShape = errors.New("list capture for scalar field")

	// ErrSourceTooLarge indicates a source unit exceeds MaxSourceSize.
	ErrSourceTooLarge = errors.New("source exceeds maximum size")

	// ErrNoOracle indicates an operation needs an oracle but none is configured.
	ErrNoOracle = errors.New("no oracle configured")

	// ErrOracleEmpty indicates the oracle returned an empty reply.
	ErrOracleEmpty = errors.New("oracle returned empty reply")

	// ErrRepairRejected indicates a repair reply did not look like a translation unit.
	ErrRepairRejected = errors.New("repair reply rejected")
)
