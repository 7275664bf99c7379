package neupass

import (
	"bytes"
	"encoding/json"
	"errors"
)

// PortalTicket is the long-lived SSO ticket (the CASTGC cookie value).
type PortalTicket string

// ServiceTicket is a single-use ticket bound to one service callback URL.
type ServiceTicket string

// ============================================================================
// SSO login
// ============================================================================

const ssoCodeSuccess = 1

// ssoLoginResponse is the SSO gateway answer. Result is an object carrying
// "tgt" on success and an empty array otherwise, so it is decoded lazily.
type ssoLoginResponse struct {
	Code   int             `json:"code"`
	Result json.RawMessage `json:"result"`
	Msg    string          `json:"msg"`
}

var errUnexpectedResult = errors.New("unexpected sso result format")

// ticket extracts the portal ticket. An empty array or an object without tgt
// yields "", anything else is a protocol violation.
func (r ssoLoginResponse) ticket() (PortalTicket, error) {
	raw := bytes.TrimSpace(r.Result)
	if len(raw) == 0 {
		return "", errUnexpectedResult
	}

	switch raw[0] {
	case '[':
		var items []json.RawMessage
		if err := json.Unmarshal(raw, &items); err != nil {
			return "", err
		}
		if len(items) != 0 {
			return "", errUnexpectedResult
		}
		return "", nil
	case '{':
		var obj struct {
			TGT string `json:"tgt"`
		}
		if err := json.Unmarshal(raw, &obj); err != nil {
			return "", err
		}
		return PortalTicket(obj.TGT), nil
	default:
		return "", errUnexpectedResult
	}
}

// ============================================================================
// ECode
// ============================================================================

// ListedResponse is the ECode envelope: a list of typed attribute records.
type ListedResponse[T any] struct {
	Data []ListedItem[T] `json:"data"`
}

type ListedItem[T any] struct {
	Attributes T `json:"attributes"`
}

// First returns the attributes of the first record.
func (r ListedResponse[T]) First() (T, bool) {
	if len(r.Data) == 0 {
		var zero T
		return zero, false
	}
	return r.Data[0].Attributes, true
}

type ECodeQRCode struct {
	QRCode        string `json:"qrCode"`
	CreateTime    int64  `json:"createTime"`
	QRInvalidTime int64  `json:"qrInvalidTime"`
}

type ECodeUserInfo struct {
	UserCode string `json:"userCode"`
	UserName string `json:"userName"`
	UnitName string `json:"unitName"`
	IDType   string `json:"idType"`
}

// ============================================================================
// Personal portal
// ============================================================================

// PersonalResponse is the personal portal envelope.
type PersonalResponse[T any] struct {
	E int    `json:"e"`
	M string `json:"m"`
	D T      `json:"d"`
}

type UserInfoOuter struct {
	Info UserInfo `json:"info"`
}

// UserInfo is the personal portal profile. Organ and Organs have no stable
// shape and are kept raw.
type UserInfo struct {
	UID        string          `json:"uid"`
	Name       string          `json:"name"`
	XGH        string          `json:"xgh"` // student or staff number
	Identity   string          `json:"identity"`
	IdentityID string          `json:"identity_id"`
	Sex        int             `json:"sex"`
	Depart     string          `json:"depart"`
	Mobile     string          `json:"mobile"`
	Email      string          `json:"email"`
	Organ      json.RawMessage `json:"organ"`
	Organs     json.RawMessage `json:"organs"`
	Avatar     string          `json:"avatar"`
	AvatarURL  string          `json:"avatar_url"`
	Time       string          `json:"time"`
	IsManager  bool            `json:"is_manager"`
}

type PersonalDataIDs struct {
	Data []PersonalDataID `json:"data"`
}

// PersonalDataID maps a data key (e.g. "card_balance") to its detail id.
type PersonalDataID struct {
	Key string `json:"key"`
	ID  string `json:"id"`
}

type PersonalDataItemOuter struct {
	Data PersonalDataItem `json:"data"`
}

// PersonalDataItem is one personal data value. Value is any JSON scalar.
type PersonalDataItem struct {
	Value json.RawMessage `json:"value"`
	Unit  *string         `json:"unit,omitempty"`
	URL   *string         `json:"url,omitempty"`
}

// ValueString renders a scalar value as text. Strings are unquoted, numbers
// and booleans are returned verbatim. Null, objects and arrays report false.
func (i PersonalDataItem) ValueString() (string, bool) {
	raw := bytes.TrimSpace(i.Value)
	if len(raw) == 0 {
		return "", false
	}

	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", false
		}
		return s, true
	case '{', '[', 'n':
		return "", false
	default:
		return string(raw), true
	}
}

// ============================================================================
// Assistant
// ============================================================================

// AssistantResponse is the assistant envelope.
type AssistantResponse[T any] struct {
	D T `json:"d"`
}
