package psafe

import (
	"strconv"
	"strings"
	"unicode"
)

// AutotypeTokenKind distinguishes literal keys from commands.
type AutotypeTokenKind int

const (
	// AutotypeKey is a key or key combination in SendKeys notation.
	AutotypeKey AutotypeTokenKind = iota
	// AutotypeCommand is a placeholder or action such as "Password" or "Delay:100".
	AutotypeCommand
)

// AutotypeToken is a single step of an autotype sequence.
type AutotypeToken struct {
	Content string
	Kind    AutotypeTokenKind
}

func (t AutotypeToken) String() string {
	return t.Content
}

func keyToken(s string) AutotypeToken {
	return AutotypeToken{Content: s, Kind: AutotypeKey}
}

func cmdToken(s string) AutotypeToken {
	return AutotypeToken{Content: s, Kind: AutotypeCommand}
}

type autotypeState int

const (
	stateDefault autotypeState = iota
	stateEscape
	stateEscapeCreditCard
	stateEscapeMandatoryNumber
	stateEscapeOptionalNumber
)

// ParseAutotype tokenizes an autotype template without substituting entry
// values. An empty template types the user name and password separated by
// Tab and followed by Enter.
func ParseAutotype(template string) []AutotypeToken {
	if template == "" {
		return []AutotypeToken{cmdToken("UserName"), keyToken("{Tab}"), cmdToken("Password"), keyToken("{Enter}")}
	}

	var (
		tokens []AutotypeToken
		state  = stateDefault
		cmd    string
		args   strings.Builder
	)
	for _, ch := range template {
		switch state {
		case stateDefault:
			if ch == '\\' {
				state = stateEscape
			} else {
				tokens = append(tokens, keyToken(string(ch)))
			}

		case stateEscape:
			state = stateDefault
			switch ch {
			case 'u', 'p', '2', 'g', 'i', 'l', 'm', 'z':
				tokens = append(tokens, commandToken(string(ch), ""))
			case 'c':
				state = stateEscapeCreditCard
			case 'b':
				tokens = append(tokens, keyToken("{Backspace}"))
			case 't':
				tokens = append(tokens, keyToken("{Tab}"))
			case 's':
				tokens = append(tokens, keyToken("+{Tab}"))
			case 'n':
				tokens = append(tokens, keyToken("{Enter}"))
			case 'd', 'w', 'W':
				cmd = string(ch)
				state = stateEscapeMandatoryNumber
			case 'o':
				cmd = string(ch)
				state = stateEscapeOptionalNumber
			default:
				tokens = append(tokens, keyToken(string(ch)))
			}

		case stateEscapeCreditCard:
			switch ch {
			case 'n', 't', 'e', 'v', 'p':
				tokens = append(tokens, commandToken("c"+string(ch), ""))
			default:
				tokens = append(tokens, AutotypeKeys("c"+string(ch))...)
			}
			state = stateDefault

		case stateEscapeMandatoryNumber:
			if unicode.IsDigit(ch) {
				args.WriteRune(ch)
				state = stateEscapeOptionalNumber
			} else {
				tokens = append(tokens, AutotypeKeys(cmd+args.String()+string(ch))...)
				cmd = ""
				state = stateDefault
			}

		case stateEscapeOptionalNumber:
			if unicode.IsDigit(ch) && args.Len() < 3 {
				args.WriteRune(ch)
				continue
			}
			tokens = append(tokens, commandToken(cmd, args.String()))
			cmd = ""
			args.Reset()
			if ch == '\\' {
				state = stateEscape
			} else {
				tokens = append(tokens, keyToken(string(ch)))
				state = stateDefault
			}
		}
	}

	switch {
	case cmd != "":
		if args.Len() == 0 && (cmd == "d" || cmd == "w" || cmd == "W") {
			tokens = append(tokens, AutotypeKeys(cmd)...)
		} else {
			tokens = append(tokens, commandToken(cmd, args.String()))
		}
	case state == stateEscape:
		tokens = append(tokens, keyToken(`\`))
	}
	return tokens
}

func commandToken(cmd, arg string) AutotypeToken {
	withArg := func(name, suffix string) AutotypeToken {
		if arg == "" {
			return cmdToken(name)
		}
		return cmdToken(name + ":" + arg + suffix)
	}
	switch cmd {
	case "u":
		return cmdToken("UserName")
	case "p":
		return cmdToken("Password")
	case "2":
		return cmdToken("TwoFactorCode")
	case "cn":
		return cmdToken("CreditCardNumber")
	case "ct":
		return cmdToken("CreditCardNumberTabbed")
	case "ce":
		return cmdToken("CreditCardExpiration")
	case "cv":
		return cmdToken("CreditCardVerificationValue")
	case "cp":
		return cmdToken("CreditCardPin")
	case "g":
		return cmdToken("Group")
	case "i":
		return cmdToken("Title")
	case "l":
		return cmdToken("Url")
	case "m":
		return cmdToken("Email")
	case "o":
		return withArg("Notes", "")
	case "d":
		return withArg("Delay", "")
	case "w":
		return withArg("Wait", "")
	case "W":
		return withArg("Wait", "000")
	case "z":
		return cmdToken("Legacy")
	default:
		return keyToken(cmd)
	}
}

// ExpandAutotype replaces value commands with the keys that type the
// entry's values. TwoFactorCode, Delay, Wait and Legacy are passed through.
func ExpandAutotype(tokens []AutotypeToken, e *Entry) []AutotypeToken {
	var out []AutotypeToken
	for _, t := range tokens {
		if t.Kind != AutotypeCommand {
			out = append(out, t)
			continue
		}
		name, arg, _ := strings.Cut(t.Content, ":")
		switch name {
		case "UserName":
			out = append(out, AutotypeKeys(e.UserName())...)
		case "Password":
			out = append(out, AutotypeKeys(e.Password())...)
		case "CreditCardNumber":
			out = append(out, AutotypeKeys(trimCardNumber(e.CreditCardNumber(), false))...)
		case "CreditCardNumberTabbed":
			out = append(out, AutotypeKeys(trimCardNumber(e.CreditCardNumber(), true))...)
		case "CreditCardExpiration":
			out = append(out, AutotypeKeys(e.CreditCardExpiration())...)
		case "CreditCardVerificationValue":
			out = append(out, AutotypeKeys(e.CreditCardVerificationValue())...)
		case "CreditCardPin":
			out = append(out, AutotypeKeys(e.CreditCardPin())...)
		case "Group":
			out = append(out, AutotypeKeys(string(e.Group()))...)
		case "Title":
			out = append(out, AutotypeKeys(e.Title())...)
		case "Url":
			out = append(out, AutotypeKeys(e.URL())...)
		case "Email":
			out = append(out, AutotypeKeys(e.Email())...)
		case "Notes":
			out = append(out, AutotypeKeys(notesText(e.Notes(), arg))...)
		case "TwoFactorCode", "Delay", "Wait", "Legacy":
			out = append(out, t)
		}
	}
	return out
}

var noteLineBreaks = strings.NewReplacer("\r\n", "\n", "\r", "\n")

// notesText returns all notes with normalized line breaks, or only the
// 1-based line selected by arg.
func notesText(notes, arg string) string {
	lines := strings.Split(noteLineBreaks.Replace(notes), "\n")
	if arg == "" {
		return strings.Join(lines, "\n")
	}
	n, err := strconv.Atoi(arg)
	if err != nil || n < 1 || n > len(lines) {
		return ""
	}
	return lines[n-1]
}

func trimCardNumber(number string, tabbed bool) string {
	var digits []rune
	for _, ch := range number {
		if unicode.IsDigit(ch) {
			digits = append(digits, ch)
		}
	}
	if !tabbed {
		return string(digits)
	}
	for i := len(digits) - 4; i > 0; i -= 4 {
		digits = append(digits[:i], append([]rune{'\t'}, digits[i:]...)...)
	}
	return string(digits)
}

// AutotypeKeys converts text into key tokens, escaping characters that are
// special in SendKeys notation.
func AutotypeKeys(text string) []AutotypeToken {
	tokens := make([]AutotypeToken, 0, len(text))
	for _, ch := range text {
		switch ch {
		case '+', '^', '%', '~', '(', ')', '{', '}', '[', ']':
			tokens = append(tokens, keyToken("{"+string(ch)+"}"))
		case '\b':
			tokens = append(tokens, keyToken("{Backspace}"))
		case '\n', '\r':
			tokens = append(tokens, keyToken("{Enter}"))
		case '\t':
			tokens = append(tokens, keyToken("{Tab}"))
		default:
			tokens = append(tokens, keyToken(string(ch)))
		}
	}
	return tokens
}
