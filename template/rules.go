package template

// Rules holds the limits the template validator enforces.
type Rules struct {
	MinLabelLength      int    `envconfig:"MIN_LABEL_LENGTH" default:"2"`
	MaxDefinitionLength int    `envconfig:"MAX_DEFINITION_LENGTH" default:"140"`
	LabelPattern        string `envconfig:"LABEL_PATTERN" default:"^[a-zA-Z0-9\\s]*$"`
	MinPeriodsToAverage int    `envconfig:"MIN_PERIODS_TO_AVERAGE" default:"2"`
}

// DefaultRules returns the standard limits.
func DefaultRules() Rules {
	return Rules{
		MinLabelLength:      2,
		MaxDefinitionLength: 140,
		LabelPattern:        `^[a-zA-Z0-9\s]*$`,
		MinPeriodsToAverage: 2,
	}
}
