package psafe

import "fmt"

// RecordType identifies the kind of value stored in an entry record.
type RecordType byte

const (
	RecordUUID                        RecordType = 0x01
	RecordGroup                       RecordType = 0x02
	RecordTitle                       RecordType = 0x03
	RecordUserName                    RecordType = 0x04
	RecordNotes                       RecordType = 0x05
	RecordPassword                    RecordType = 0x06
	RecordCreationTime                RecordType = 0x07
	RecordPasswordModificationTime    RecordType = 0x08
	RecordLastAccessTime              RecordType = 0x09
	RecordPasswordExpiryTime          RecordType = 0x0A
	RecordLastModificationTime        RecordType = 0x0C
	RecordURL                         RecordType = 0x0D
	RecordAutotype                    RecordType = 0x0E
	RecordPasswordHistory             RecordType = 0x0F
	RecordPasswordPolicy              RecordType = 0x10
	RecordPasswordExpiryInterval      RecordType = 0x11
	RecordRunCommand                  RecordType = 0x12
	RecordDoubleClickAction           RecordType = 0x13
	RecordEmailAddress                RecordType = 0x14
	RecordProtectedEntry              RecordType = 0x15
	RecordOwnSymbolsForPassword       RecordType = 0x16
	RecordShiftDoubleClickAction      RecordType = 0x17
	RecordPasswordPolicyName          RecordType = 0x18
	RecordEntryKeyboardShortcut       RecordType = 0x19
	RecordTwoFactorKey                RecordType = 0x1B
	RecordCreditCardNumber            RecordType = 0x1C
	RecordCreditCardExpiration        RecordType = 0x1D
	RecordCreditCardVerificationValue RecordType = 0x1E
	RecordCreditCardPin               RecordType = 0x1F
	RecordQRCode                      RecordType = 0x20
	RecordEndOfEntry                  RecordType = 0xFF
)

var recordTypeNames = map[RecordType]string{
	RecordUUID:                        "Uuid",
	RecordGroup:                       "Group",
	RecordTitle:                       "Title",
	RecordUserName:                    "UserName",
	RecordNotes:                       "Notes",
	RecordPassword:                    "Password",
	RecordCreationTime:                "CreationTime",
	RecordPasswordModificationTime:    "PasswordModificationTime",
	RecordLastAccessTime:              "LastAccessTime",
	RecordPasswordExpiryTime:          "PasswordExpiryTime",
	RecordLastModificationTime:        "LastModificationTime",
	RecordURL:                         "Url",
	RecordAutotype:                    "Autotype",
	RecordPasswordHistory:             "PasswordHistory",
	RecordPasswordPolicy:              "PasswordPolicy",
	RecordPasswordExpiryInterval:      "PasswordExpiryInterval",
	RecordRunCommand:                  "RunCommand",
	RecordDoubleClickAction:           "DoubleClickAction",
	RecordEmailAddress:                "EmailAddress",
	RecordProtectedEntry:              "ProtectedEntry",
	RecordOwnSymbolsForPassword:       "OwnSymbolsForPassword",
	RecordShiftDoubleClickAction:      "ShiftDoubleClickAction",
	RecordPasswordPolicyName:          "PasswordPolicyName",
	RecordEntryKeyboardShortcut:       "EntryKeyboardShortcut",
	RecordTwoFactorKey:                "TwoFactorKey",
	RecordCreditCardNumber:            "CreditCardNumber",
	RecordCreditCardExpiration:        "CreditCardExpiration",
	RecordCreditCardVerificationValue: "CreditCardVerificationValue",
	RecordCreditCardPin:               "CreditCardPin",
	RecordQRCode:                      "QRCode",
	RecordEndOfEntry:                  "EndOfEntry",
}

func (t RecordType) String() string {
	if name, ok := recordTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("RecordType(0x%02X)", byte(t))
}

// DataType returns how values of this record type are interpreted.
func (t RecordType) DataType() DataType {
	switch t {
	case RecordUUID:
		return DataUUID
	case RecordCreationTime, RecordPasswordModificationTime, RecordLastAccessTime,
		RecordPasswordExpiryTime, RecordLastModificationTime:
		return DataTime
	case RecordTwoFactorKey:
		return DataBinary
	case RecordGroup, RecordTitle, RecordUserName, RecordNotes, RecordPassword, RecordURL,
		RecordAutotype, RecordPasswordHistory, RecordPasswordPolicy, RecordRunCommand,
		RecordEmailAddress, RecordOwnSymbolsForPassword, RecordPasswordPolicyName,
		RecordCreditCardNumber, RecordCreditCardExpiration, RecordCreditCardVerificationValue,
		RecordCreditCardPin, RecordQRCode:
		return DataText
	default:
		return DataUnknown
	}
}

// autoTimestamp reports whether the type is filled in by change tracking.
func (t RecordType) autoTimestamp() bool {
	switch t {
	case RecordCreationTime, RecordLastAccessTime, RecordLastModificationTime, RecordPasswordModificationTime:
		return true
	}
	return false
}
