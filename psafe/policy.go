package psafe

import (
	"fmt"
	"slices"
	"strconv"
)

// PasswordPolicyStyle is the flag set describing generated passwords.
type PasswordPolicyStyle uint16

const (
	PolicyUseLowercase      PasswordPolicyStyle = 0x8000
	PolicyUseUppercase      PasswordPolicyStyle = 0x4000
	PolicyUseDigits         PasswordPolicyStyle = 0x2000
	PolicyUseSymbols        PasswordPolicyStyle = 0x1000
	PolicyUseHexDigits      PasswordPolicyStyle = 0x0800
	PolicyUseEasyVision     PasswordPolicyStyle = 0x0400
	PolicyMakePronounceable PasswordPolicyStyle = 0x0200
)

const maxPolicyCount = 4095

// PasswordPolicy describes how passwords for an entry should be generated.
// A policy obtained from an entry writes every change back to the entry's
// PasswordPolicy and OwnSymbolsForPassword records.
type PasswordPolicy struct {
	records    *RecordCollection
	style      PasswordPolicyStyle
	length     int
	minLower   int
	minUpper   int
	minDigits  int
	minSymbols int
	symbols    []rune
}

// NewPasswordPolicy returns a detached policy producing passwords of the
// given length.
func NewPasswordPolicy(length int) (*PasswordPolicy, error) {
	p := &PasswordPolicy{}
	if err := p.SetTotalPasswordLength(length); err != nil {
		return nil, err
	}
	return p, nil
}

func newEntryPasswordPolicy(records *RecordCollection) *PasswordPolicy {
	p := &PasswordPolicy{}
	if r, ok := records.Lookup(RecordPasswordPolicy); ok {
		text, _ := r.Text()
		p.parse(text)
	}
	if r, ok := records.Lookup(RecordOwnSymbolsForPassword); ok {
		text, _ := r.Text()
		p.symbols = normalizeSymbols([]rune(text))
	}
	p.records = records
	return p
}

// parse fills the policy from its text form, stopping at the first field
// that is missing or malformed.
func (p *PasswordPolicy) parse(text string) {
	next := func(width int) (int, bool) {
		if len(text) < width {
			return 0, false
		}
		n, err := strconv.ParseUint(text[:width], 16, 16)
		if err != nil {
			return 0, false
		}
		text = text[width:]
		return int(n), true
	}
	style, ok := next(4)
	if !ok {
		return
	}
	p.style = clampStyle(PasswordPolicyStyle(style))
	for _, dst := range []*int{&p.length, &p.minLower, &p.minUpper, &p.minDigits, &p.minSymbols} {
		n, ok := next(3)
		if !ok {
			return
		}
		*dst = n
	}
}

func clampStyle(s PasswordPolicyStyle) PasswordPolicyStyle {
	if s&PolicyUseHexDigits != 0 {
		return PolicyUseHexDigits
	}
	return s
}

func normalizeSymbols(symbols []rune) []rune {
	out := slices.Clone(symbols)
	slices.Sort(out)
	return slices.Compact(out)
}

// String returns the policy's text form.
func (p *PasswordPolicy) String() string {
	return fmt.Sprintf("%04X%03X%03X%03X%03X%03X", uint16(p.style), p.length, p.minLower, p.minUpper, p.minDigits, p.minSymbols)
}

func (p *PasswordPolicy) persist() error {
	if p.records == nil {
		return nil
	}
	r, err := p.records.Get(RecordPasswordPolicy)
	if err != nil {
		return err
	}
	return r.SetText(p.String())
}

func (p *PasswordPolicy) Style() PasswordPolicyStyle {
	return p.style
}

// SetStyle sets the style flags. UseHexDigits excludes every other flag.
func (p *PasswordPolicy) SetStyle(s PasswordPolicyStyle) error {
	p.style = clampStyle(s)
	return p.persist()
}

func (p *PasswordPolicy) TotalPasswordLength() int {
	return p.length
}

func (p *PasswordPolicy) SetTotalPasswordLength(n int) error {
	if n < 1 || n > maxPolicyCount {
		return fmt.Errorf("%w: length must be between 1 and %d", ErrOutOfRange, maxPolicyCount)
	}
	p.length = n
	return p.persist()
}

func (p *PasswordPolicy) setCount(dst *int, n int) error {
	if n < 0 || n > maxPolicyCount {
		return fmt.Errorf("%w: count must be between 0 and %d", ErrOutOfRange, maxPolicyCount)
	}
	*dst = n
	return p.persist()
}

func (p *PasswordPolicy) MinimumLowercaseCount() int { return p.minLower }

func (p *PasswordPolicy) SetMinimumLowercaseCount(n int) error { return p.setCount(&p.minLower, n) }

func (p *PasswordPolicy) MinimumUppercaseCount() int { return p.minUpper }

func (p *PasswordPolicy) SetMinimumUppercaseCount(n int) error { return p.setCount(&p.minUpper, n) }

func (p *PasswordPolicy) MinimumDigitCount() int { return p.minDigits }

func (p *PasswordPolicy) SetMinimumDigitCount(n int) error { return p.setCount(&p.minDigits, n) }

func (p *PasswordPolicy) MinimumSymbolCount() int { return p.minSymbols }

func (p *PasswordPolicy) SetMinimumSymbolCount(n int) error { return p.setCount(&p.minSymbols, n) }

// SpecialSymbols returns the entry's own symbol set, sorted and without
// duplicates.
func (p *PasswordPolicy) SpecialSymbols() []rune {
	return slices.Clone(p.symbols)
}

func (p *PasswordPolicy) SetSpecialSymbols(symbols ...rune) error {
	p.symbols = normalizeSymbols(symbols)
	if p.records == nil {
		return nil
	}
	r, err := p.records.Get(RecordOwnSymbolsForPassword)
	if err != nil {
		return err
	}
	return r.SetText(string(p.symbols))
}
