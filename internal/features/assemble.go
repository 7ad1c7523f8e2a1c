package features

import (
	"log/slog"
	"strconv"
)

// Assembler builds model rows from raw session answers.
type Assembler struct {
	normalizer *Normalizer
	logger     *slog.Logger
}

// NewAssembler returns an Assembler that normalizes with n and reports
// schema drift to logger.
func NewAssembler(n *Normalizer, logger *slog.Logger) *Assembler {
	return &Assembler{normalizer: n, logger: logger}
}

// Normalizer returns the normalizer the assembler uses.
func (a *Assembler) Normalizer() *Normalizer { return a.normalizer }

// Canonical returns the full canonical answer set: one value per known
// question id, taken from raw where answered and from the defaults
// elsewhere.
func (a *Assembler) Canonical(raw map[string]string) map[string]Value {
	set := a.normalizer.Defaults()
	for id, v := range raw {
		set[id] = a.normalizer.Normalize(id, v)
	}
	return set
}

// Assemble returns a row with exactly contract.Len() values in contract
// order. Columns the answers don't cover get their default; columns with no
// default get Unknown and a warning. Answers outside the contract are
// dropped.
func (a *Assembler) Assemble(raw map[string]string, contract Contract) Row {
	set := a.Canonical(raw)

	row := Row{
		Columns: make([]string, contract.Len()),
		Values:  make([]Value, contract.Len()),
	}
	for i, col := range contract.Columns {
		v, ok := set[col]
		if !ok {
			a.logger.Warn("features: model column has no catalog default, using placeholder",
				"column", col,
				"placeholder", Unknown,
			)
			v = Text(Unknown)
		}
		row.Columns[i] = col
		row.Values[i] = a.coerce(col, v, contract.IsNumeric(col))
	}
	return row
}

// coerce makes v match the column type the contract declares.
func (a *Assembler) coerce(col string, v Value, numeric bool) Value {
	switch {
	case numeric && !v.Numeric:
		if n, err := atoi(v.Text); err == nil {
			return Number(n)
		}
		if d, ok := a.normalizer.Default(col); ok && d.Numeric {
			return d
		}
		a.logger.Warn("features: numeric model column has no numeric value, using zero",
			"column", col,
			"value", v.Text,
		)
		return Number(0)
	case !numeric && v.Numeric:
		return Text(strconv.Itoa(v.Number))
	default:
		return v
	}
}
