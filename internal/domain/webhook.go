/**
 * @description
 * This file models the incoming webhook payloads from the two payment providers.
 * The shapes are deliberately narrow: only the fields the normalizer reads are
 * declared, everything else stays inside the raw payload blob that gets merged
 * into the transaction's stored response.
 *
 * @notes
 * - Paystack nests everything under `data` and reports amounts in minor units.
 * - IntaSend is flat and reports amounts in whole units; its `value` field has
 *   been observed both as a JSON number and as a quoted string, hence FlexInt.
 */
package domain

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// FlexString unmarshals from either a JSON string or a JSON number. Provider
// metadata round-trips through mobile clients and dashboards, so numeric
// subscription ids arrive both quoted and unquoted.
type FlexString string

func (f *FlexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		*f = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = FlexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = FlexString(n.String())
	return nil
}

// FlexInt unmarshals from a JSON number or a numeric string, truncating any
// fractional part toward zero.
type FlexInt int64

func (f *FlexInt) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		*f = 0
		return nil
	}
	s := string(data)
	if data[0] == '"' {
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
	}
	s = strings.TrimSpace(s)
	if s == "" {
		*f = 0
		return nil
	}
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		*f = FlexInt(i)
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return err
	}
	*f = FlexInt(int64(v))
	return nil
}

// EventMetadata carries the reconciliation key both providers echo back to us.
type EventMetadata struct {
	SubscriptionID FlexString `json:"subscription_id"`
}

// PaystackWebhookPayload is the top-level shape of a Paystack event.
type PaystackWebhookPayload struct {
	Event string            `json:"event"` // e.g. "charge.success"
	Data  PaystackEventData `json:"data"`
}

// PaystackEventData is the `data` object within a Paystack event.
type PaystackEventData struct {
	Reference string        `json:"reference"`
	Amount    FlexInt       `json:"amount"` // minor units (cents)
	Currency  string        `json:"currency"`
	PaidAt    string        `json:"paid_at,omitempty"`
	Metadata  EventMetadata `json:"metadata"`
}

// IntaSendWebhookPayload is the flat shape of an IntaSend collection event.
// `invoice` and `state` are mandatory; a payload missing either is malformed.
type IntaSendWebhookPayload struct {
	Invoice  *string       `json:"invoice"`
	State    *string       `json:"state"` // e.g. "COMPLETE", "FAILED"
	Value    FlexInt       `json:"value"` // whole currency units
	Currency string        `json:"currency"`
	APIRef   string        `json:"api_ref,omitempty"`
	Metadata EventMetadata `json:"metadata"`
}
