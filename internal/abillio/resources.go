package abillio

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
)

// endpoints used by the demo pages
const (
	EndpointServices    = "services"
	EndpointCountries   = "countries"
	EndpointCurrencies  = "currencies"
	EndpointFreelancers = "freelancers"
)

// Pagination is returned alongside every list result
type Pagination struct {
	Page         int  `json:"page"`
	NumPages     int  `json:"num_pages"`
	PreviousPage *int `json:"previous_page"`
	NextPage     *int `json:"next_page"`
	Count        int  `json:"count"`
}

type ListResponse[T any] struct {
	Result     []T         `json:"result"`
	Pagination *Pagination `json:"pagination,omitempty"`
}

type Country struct {
	ID   string `json:"id" example:"LV"`
	Name string `json:"name" example:"Latvia"`
	Flag string `json:"flag,omitempty"`
}

type Currency struct {
	ID     string `json:"id" example:"EUR"`
	Symbol string `json:"symbol" example:"€"`
}

// ServiceQuery holds the filters accepted by the services list
type ServiceQuery struct {
	Lang    string
	Country string
	Page    int
}

func (q ServiceQuery) params() map[string]string {
	params := map[string]string{}
	if q.Lang != "" {
		params["lang"] = q.Lang
	}
	if q.Country != "" {
		params["country"] = q.Country
	}
	if q.Page > 0 {
		params["p"] = strconv.Itoa(q.Page)
	}
	return params
}

// ListServices returns a page of services. Services are kept as raw JSON since the demo displays them as is.
func ListServices(ctx context.Context, r Requester, q ServiceQuery) (*ListResponse[json.RawMessage], error) {
	return Get[ListResponse[json.RawMessage]](ctx, r, EndpointServices, q.params())
}

func ListCountries(ctx context.Context, r Requester, lang string) (*ListResponse[Country], error) {
	return Get[ListResponse[Country]](ctx, r, EndpointCountries, map[string]string{"lang": lang})
}

// ListCurrencies lists currencies, optionally only those that can be used for payouts
func ListCurrencies(ctx context.Context, r Requester, lang string, paymentOnly bool) (*ListResponse[Currency], error) {
	params := map[string]string{"lang": lang}
	if paymentOnly {
		params["is_payment_currency"] = ""
	}
	return Get[ListResponse[Currency]](ctx, r, EndpointCurrencies, params)
}

// CreateFreelancer registers a freelancer and returns the upstream response verbatim
func CreateFreelancer(ctx context.Context, r Requester, payload any) (json.RawMessage, error) {
	return r.Request(ctx, EndpointFreelancers, payload, http.MethodPost, nil)
}
