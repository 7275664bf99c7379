package neupass

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSSOLoginResponseTicket(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		body    string
		want    PortalTicket
		wantErr bool
	}{
		{name: "object with tgt", body: `{"code":1,"result":{"tgt":"TGT-1"},"msg":""}`, want: "TGT-1"},
		{name: "object without tgt", body: `{"code":1,"result":{},"msg":""}`},
		{name: "empty tgt", body: `{"code":1,"result":{"tgt":""},"msg":""}`},
		{name: "empty array", body: `{"code":1,"result":[],"msg":""}`},
		{name: "non-empty array", body: `{"code":1,"result":["x"],"msg":""}`, wantErr: true},
		{name: "string", body: `{"code":1,"result":"TGT-1","msg":""}`, wantErr: true},
		{name: "missing", body: `{"code":1,"msg":""}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var resp ssoLoginResponse
			require.NoError(t, json.Unmarshal([]byte(tt.body), &resp))

			got, err := resp.ticket()
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestListedResponseFirst(t *testing.T) {
	t.Parallel()

	var resp ListedResponse[ECodeQRCode]
	require.NoError(t, json.Unmarshal([]byte(`{"data":[{"type":null,"attributes":{"qrCode":"A","createTime":1,"qrInvalidTime":2}},{"attributes":{"qrCode":"B"}}]}`), &resp))

	first, ok := resp.First()
	require.True(t, ok)
	require.Equal(t, ECodeQRCode{QRCode: "A", CreateTime: 1, QRInvalidTime: 2}, first)

	_, ok = ListedResponse[ECodeQRCode]{}.First()
	require.False(t, ok)
}

func TestPersonalDataItemValueString(t *testing.T) {
	t.Parallel()

	tests := []struct {
		raw    string
		want   string
		wantOK bool
	}{
		{raw: `"12.50"`, want: "12.50", wantOK: true},
		{raw: `"with \"quotes\""`, want: `with "quotes"`, wantOK: true},
		{raw: `3`, want: "3", wantOK: true},
		{raw: `-0.5`, want: "-0.5", wantOK: true},
		{raw: `true`, want: "true", wantOK: true},
		{raw: `null`},
		{raw: `{"a":1}`},
		{raw: `[1]`},
		{raw: ``},
	}

	for _, tt := range tests {
		item := PersonalDataItem{Value: json.RawMessage(tt.raw)}
		got, ok := item.ValueString()
		require.Equal(t, tt.wantOK, ok, "raw %q", tt.raw)
		require.Equal(t, tt.want, got, "raw %q", tt.raw)
	}
}

func TestPersonalDataItemDecode(t *testing.T) {
	t.Parallel()

	var outer PersonalDataItemOuter
	require.NoError(t, json.Unmarshal([]byte(`{"data":{"value":"12.50","unit":"CNY"}}`), &outer))

	require.NotNil(t, outer.Data.Unit)
	require.Equal(t, "CNY", *outer.Data.Unit)
	require.Nil(t, outer.Data.URL)
}
