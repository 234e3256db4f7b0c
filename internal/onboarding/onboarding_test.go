package onboarding

import (
	"errors"
	"testing"

	"github.com/tidwall/gjson"
)

const validPersonal = `{
	"language": "en",
	"email": "anna@example.com",
	"first_name": "Anna",
	"last_name": "Berzina",
	"gender": "female",
	"birth_date": "1990-04-12",
	"country": "LV",
	"personal_code": "120490-12345"
}`

const validAddress = `{"country": "LV", "street": "Brivibas iela 1", "city": "Riga", "postcode": "LV-1010"}`

const validPayment = `{"kind": "sepa", "currency": "EUR", "name": "Anna Berzina", "bank_name": "Swedbank", "iban": "LV80BANK0000435195001"}`

func fields(fieldErrors []FieldError) map[string]bool {
	out := make(map[string]bool, len(fieldErrors))
	for _, fe := range fieldErrors {
		out[fe.Field] = true
	}
	return out
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name       string
		step       Step
		doc        string
		wantFields []string
	}{
		{
			name: "valid personal",
			step: StepPersonal,
			doc:  validPersonal,
		},
		{
			name: "null birth date is allowed",
			step: StepPersonal,
			doc:  `{"language": "en", "email": "a@example.com", "first_name": "A", "last_name": "B", "gender": "other", "birth_date": null, "country": "LV", "personal_code": "1"}`,
		},
		{
			name:       "bad email and gender",
			step:       StepPersonal,
			doc:        `{"language": "en", "email": "not-an-email", "first_name": "A", "last_name": "B", "gender": "unknown", "country": "LV", "personal_code": "1"}`,
			wantFields: []string{"email", "gender"},
		},
		{
			name:       "bad birth date",
			step:       StepPersonal,
			doc:        `{"language": "en", "email": "a@example.com", "first_name": "A", "last_name": "B", "gender": "male", "birth_date": "12/04/1990", "country": "LV", "personal_code": "1"}`,
			wantFields: []string{"birth_date"},
		},
		{
			name:       "missing fields are reported by name",
			step:       StepPersonal,
			doc:        `{"language": "en", "email": "a@example.com", "gender": "male", "country": "LV", "personal_code": "1"}`,
			wantFields: []string{"first_name", "last_name"},
		},
		{
			name: "valid address",
			step: StepAddress,
			doc:  validAddress,
		},
		{
			name:       "short country and empty city",
			step:       StepAddress,
			doc:        `{"country": "L", "street": "Brivibas iela 1", "city": "", "postcode": "LV-1010"}`,
			wantFields: []string{"city", "country"},
		},
		{
			name: "valid payment",
			step: StepPayment,
			doc:  validPayment,
		},
		{
			name:       "unsupported currency and kind",
			step:       StepPayment,
			doc:        `{"kind": "ach", "currency": "GBP", "name": "A", "bank_name": "B", "iban": "C"}`,
			wantFields: []string{"currency", "kind"},
		},
		{
			name:       "not an object",
			step:       StepPayment,
			doc:        `["sepa"]`,
			wantFields: []string{""},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fieldErrors, err := Validate(tt.step, []byte(tt.doc))
			if err != nil {
				t.Fatalf("Validate returned error: %v", err)
			}

			got := fields(fieldErrors)
			if len(got) != len(tt.wantFields) {
				t.Fatalf("got field errors %+v, want fields %v", fieldErrors, tt.wantFields)
			}
			for _, f := range tt.wantFields {
				if !got[f] {
					t.Errorf("missing field error for %q in %+v", f, fieldErrors)
				}
			}
			for _, fe := range fieldErrors {
				if fe.Message == "" {
					t.Errorf("field error for %q has no message", fe.Field)
				}
			}
		})
	}
}

func TestValidateErrors(t *testing.T) {
	if _, err := Validate(Step("billing"), []byte(`{}`)); !errors.Is(err, ErrUnknownStep) {
		t.Errorf("unknown step: got %v, want ErrUnknownStep", err)
	}
	if _, err := Validate(StepAddress, []byte(`{"country":`)); !errors.Is(err, ErrInvalidJSON) {
		t.Errorf("invalid json: got %v, want ErrInvalidJSON", err)
	}
}

func TestParseStep(t *testing.T) {
	for _, step := range Steps {
		got, err := ParseStep(string(step))
		if err != nil || got != step {
			t.Errorf("ParseStep(%q) = %q, %v", step, got, err)
		}
	}
	if _, err := ParseStep("Personal"); !errors.Is(err, ErrUnknownStep) {
		t.Errorf("ParseStep should be case sensitive, got %v", err)
	}
}

func TestValidateApplication(t *testing.T) {
	valid := `{"personal": ` + validPersonal + `, "address": ` + validAddress + `, "payment": ` + validPayment + `}`

	fieldErrors, err := ValidateApplication([]byte(valid))
	if err != nil {
		t.Fatalf("ValidateApplication returned error: %v", err)
	}
	if len(fieldErrors) != 0 {
		t.Fatalf("expected a valid application, got %+v", fieldErrors)
	}

	incomplete := `{"personal": ` + validPersonal + `, "address": {"country": "LV", "street": "x", "city": "Riga"}}`
	fieldErrors, err = ValidateApplication([]byte(incomplete))
	if err != nil {
		t.Fatalf("ValidateApplication returned error: %v", err)
	}
	got := fields(fieldErrors)
	for _, want := range []string{"address/postcode", "payment"} {
		if !got[want] {
			t.Errorf("missing field error %q in %+v", want, fieldErrors)
		}
	}

	if _, err := ValidateApplication([]byte(`{"personal":`)); !errors.Is(err, ErrInvalidJSON) {
		t.Errorf("got %v, want ErrInvalidJSON", err)
	}
}

func TestFreelancerPayload(t *testing.T) {
	application := `{"personal": {"email": "a@example.com", "first_name": "A", "birth_date": null}, "address": ` + validAddress + `, "payment": ` + validPayment + `}`

	payload, err := FreelancerPayload([]byte(application))
	if err != nil {
		t.Fatalf("FreelancerPayload returned error: %v", err)
	}

	checks := map[string]string{
		"email":             "a@example.com",
		"first_name":        "A",
		"address.city":      "Riga",
		"bank_account.iban": "LV80BANK0000435195001",
		"bank_account.kind": "sepa",
	}
	for path, want := range checks {
		if got := gjson.GetBytes(payload, path).String(); got != want {
			t.Errorf("%s = %q, want %q", path, got, want)
		}
	}
	if gjson.GetBytes(payload, "birth_date").Exists() {
		t.Error("null birth_date should be dropped")
	}
	if gjson.GetBytes(payload, "payment").Exists() {
		t.Error("payment section should be nested as bank_account")
	}

	if _, err := FreelancerPayload([]byte(`{"address": {}}`)); err == nil {
		t.Error("expected an error for an application without a personal section")
	}
}
