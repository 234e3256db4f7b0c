package templates

import (
	"context"
	"io"

	"github.com/a-h/templ"
	"github.com/information-sharing-networks/abillio-demo/internal/abillio"
	"github.com/information-sharing-networks/abillio-demo/internal/i18n"
	"github.com/information-sharing-networks/abillio-demo/internal/onboarding"
)

// OnboardingOptions are the select options loaded from the abillio API
type OnboardingOptions struct {
	Countries []abillio.Country
	// payout currencies only
	Currencies []abillio.Currency
}

type option struct {
	value string
	label string
}

// field is one form control. Fields with options render as a select.
type field struct {
	name     string
	labelKey string
	input    string
	required bool
	options  []option
}

func stepFields(step onboarding.Step, dict *i18n.Dictionary, opts OnboardingOptions) []field {
	countries := make([]option, 0, len(opts.Countries))
	for _, c := range opts.Countries {
		label := c.Name
		if c.Flag != "" {
			label = c.Flag + " " + c.Name
		}
		countries = append(countries, option{value: c.ID, label: label})
	}

	switch step {
	case onboarding.StepPersonal:
		languages := make([]option, 0, len(i18n.Languages()))
		for _, lang := range i18n.Languages() {
			languages = append(languages, option{value: lang, label: lang})
		}
		return []field{
			{name: "language", labelKey: "fieldLanguage", required: true, options: languages},
			{name: "email", labelKey: "fieldEmail", input: "email", required: true},
			{name: "first_name", labelKey: "fieldFirstName", input: "text", required: true},
			{name: "last_name", labelKey: "fieldLastName", input: "text", required: true},
			{name: "gender", labelKey: "fieldGender", required: true, options: []option{
				{"male", dict.T("genderMale")},
				{"female", dict.T("genderFemale")},
				{"other", dict.T("genderOther")},
			}},
			{name: "birth_date", labelKey: "fieldBirthDate", input: "date"},
			{name: "country", labelKey: "fieldCountry", required: true, options: countries},
			{name: "personal_code", labelKey: "fieldPersonalCode", input: "text", required: true},
			{name: "tax_number", labelKey: "fieldTaxNumber", input: "text"},
			{name: "phone", labelKey: "fieldPhone", input: "tel"},
		}
	case onboarding.StepAddress:
		return []field{
			{name: "country", labelKey: "fieldCountry", required: true, options: countries},
			{name: "street", labelKey: "fieldStreet", input: "text", required: true},
			{name: "address2", labelKey: "fieldAddress2", input: "text"},
			{name: "city", labelKey: "fieldCity", input: "text", required: true},
			{name: "postcode", labelKey: "fieldPostcode", input: "text", required: true},
		}
	default:
		currencies := make([]option, 0, len(opts.Currencies))
		for _, c := range opts.Currencies {
			currencies = append(currencies, option{value: c.ID, label: c.ID + " " + c.Symbol})
		}
		return []field{
			{name: "kind", labelKey: "fieldKind", required: true, options: []option{{"sepa", "SEPA"}, {"swift", "SWIFT"}}},
			{name: "currency", labelKey: "fieldCurrency", required: true, options: currencies},
			{name: "name", labelKey: "fieldAccountName", input: "text", required: true},
			{name: "bank_name", labelKey: "fieldBankName", input: "text", required: true},
			{name: "iban", labelKey: "fieldIban", input: "text", required: true},
		}
	}
}

var stepTitles = map[onboarding.Step]string{
	onboarding.StepPersonal: "stepPersonal",
	onboarding.StepAddress:  "stepAddress",
	onboarding.StepPayment:  "stepPayment",
}

// OnboardingPage renders the freelancer form. static/onboarding.js validates each step and submits it as JSON.
// The form is omitted when p.Error is set.
func OnboardingPage(p Page, opts OnboardingOptions) templ.Component {
	content := templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := &htmlWriter{w: w}

		h.raw("<section class=\"onboarding\">\n  <h1>")
		h.text(p.Dict.T("onboardingForm"))
		h.raw("</h1>\n  <p class=\"hint\">")
		h.text(p.Dict.T("onboardingFormInfo"))
		h.raw("</p>")

		if p.Error == "" {
			h.raw("\n  <form id=\"onboarding-form\" novalidate")
			h.attr("data-created", p.Dict.T("created"))
			h.raw(">")
			for _, step := range onboarding.Steps {
				h.raw("\n    <fieldset")
				h.attr("data-step", string(step))
				h.raw(">\n      <legend>")
				h.text(p.Dict.T(stepTitles[step]))
				h.raw("</legend>")
				for _, f := range stepFields(step, p.Dict, opts) {
					writeField(h, p, f)
				}
				h.raw("\n      <ul class=\"field-errors\"></ul>\n    </fieldset>")
			}
			h.raw("\n    <button class=\"button\" type=\"submit\">")
			h.text(p.Dict.T("submit"))
			h.raw("</button>\n  </form>\n  <pre id=\"onboarding-result\" class=\"json\" hidden></pre>\n  <script src=\"/static/onboarding.js\" defer></script>")
		}
		h.raw("\n</section>")

		return h.err
	})
	return Layout(p, content)
}

func writeField(h *htmlWriter, p Page, f field) {
	h.raw("\n      <label>")
	h.text(p.Dict.T(f.labelKey))

	if f.options == nil {
		h.raw("\n        <input")
		h.attr("type", f.input)
		h.attr("name", f.name)
		if f.required {
			h.raw(" required")
		}
		h.raw(">\n      </label>")
		return
	}

	h.raw("\n        <select")
	h.attr("name", f.name)
	if f.required {
		h.raw(" required")
	}
	h.raw(">\n          <option value=\"\">")
	h.text(p.Dict.T("choose"))
	h.raw("</option>")
	for _, o := range f.options {
		h.raw("\n          <option")
		h.attr("value", o.value)
		// the form language defaults to the page language
		if f.name == "language" && o.value == p.Lang {
			h.raw(" selected")
		}
		h.raw(">")
		h.text(o.label)
		h.raw("</option>")
	}
	h.raw("\n        </select>\n      </label>")
}
