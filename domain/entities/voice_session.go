package entities

import "fmt"

// VoiceSession is the form record a user fills across the multi-page voice
// flow. All values are opaque strings; validation belongs to the form page,
// not to this record or its store.
type VoiceSession struct {
	FullName   string `json:"fullName"`
	Age        string `json:"age"`
	Occupation string `json:"occupation"`
	Disability string `json:"disability"`
	Income     string `json:"income"`
	FatherName string `json:"fatherName"`
	MotherName string `json:"motherName"`
}

// VoiceSessionFields lists the addressable field names in form order
var VoiceSessionFields = []string{
	"fullName",
	"age",
	"occupation",
	"disability",
	"income",
	"fatherName",
	"motherName",
}

// IsVoiceSessionField reports whether name addresses a form field
func IsVoiceSessionField(name string) bool {
	for _, f := range VoiceSessionFields {
		if f == name {
			return true
		}
	}
	return false
}

// NewVoiceSession returns the all-empty default record
func NewVoiceSession() *VoiceSession {
	return &VoiceSession{}
}

// SetField merges a single field update by name
func (v *VoiceSession) SetField(name, value string) error {
	switch name {
	case "fullName":
		v.FullName = value
	case "age":
		v.Age = value
	case "occupation":
		v.Occupation = value
	case "disability":
		v.Disability = value
	case "income":
		v.Income = value
	case "fatherName":
		v.FatherName = value
	case "motherName":
		v.MotherName = value
	default:
		return fmt.Errorf("unknown voice session field %q", name)
	}
	return nil
}

// Field returns the current value of the named field
func (v *VoiceSession) Field(name string) (string, error) {
	switch name {
	case "fullName":
		return v.FullName, nil
	case "age":
		return v.Age, nil
	case "occupation":
		return v.Occupation, nil
	case "disability":
		return v.Disability, nil
	case "income":
		return v.Income, nil
	case "fatherName":
		return v.FatherName, nil
	case "motherName":
		return v.MotherName, nil
	default:
		return "", fmt.Errorf("unknown voice session field %q", name)
	}
}
