package store

// Rule is one deterministic matcher row. A rule is flow-bound iff FlowID is
// non-nil; flow-bound rules must carry a StepKey. RequiredStep nil on a
// flow-bound rule marks the flow's entry point.
type Rule struct {
	Name             string
	Description      string
	TriggerPatterns  []string // plain substring, "r:<expr>" regexp, or "*"
	ResponseTemplate string
	Variables        map[string]string
	Priority         int32
	IsActive         bool
	FlowID           *string
	StepKey          *string
	RequiredStep     *string
	NextSteps        map[string]string // choice -> target step key, "*" catch-all
	CreatedTs        int64
	UpdatedTs        int64
	ID               int32
}

type FindRule struct {
	ID       *int32
	Name     *string
	IsActive *bool
	FlowID   *string
	Limit    *int
	Offset   *int
}

type UpdateRule struct {
	Name             *string
	Description      *string
	TriggerPatterns  *[]string
	ResponseTemplate *string
	Variables        *map[string]string
	Priority         *int32
	IsActive         *bool
	FlowID           *string
	StepKey          *string
	RequiredStep     *string
	NextSteps        *map[string]string
	UpdatedTs        *int64
	ID               int32
}

type DeleteRule struct {
	ID int32
}
