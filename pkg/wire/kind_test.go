package wire

import (
	"testing"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    Kind
	}{
		{
			name:    "own broadcast probe",
			payload: "i",
			want:    KindBroadcast,
		},
		{
			name:    "discovery reply",
			payload: `"Firmware":"P30 v 3.10.57 (Build: 2023-03-01)"` + "\n",
			want:    KindDiscoveryReply,
		},
		{
			name:    "acknowledged",
			payload: "TCH-OK :done\n",
			want:    KindAcknowledged,
		},
		{
			name:    "rejected",
			payload: "TCH-ERR\n",
			want:    KindRejected,
		},
		{
			name:    "identification report",
			payload: `{"ID": "1", "Product": "KC-P30-EC240422-E00", "Serial": "17619516"}`,
			want:    KindReportIdentification,
		},
		{
			name:    "status report",
			payload: `{"ID": "2", "State": 3, "Plug": 7}`,
			want:    KindReportStatus,
		},
		{
			name:    "metering report",
			payload: `{"ID": "3", "U1": 230, "I1": 9986}`,
			want:    KindReportMetering,
		},
		{
			name:    "current session history entry",
			payload: `{"ID": "100", "Session ID": 35}`,
			want:    KindReportHistory,
		},
		{
			name:    "oldest history entry",
			payload: `{"ID": "130", "Session ID": 4}`,
			want:    KindReportHistory,
		},
		{
			name:    "numeric report ID",
			payload: `{"ID": 2, "State": 1}`,
			want:    KindReportStatus,
		},
		{
			name:    "report ID outside any known range",
			payload: `{"ID": "42"}`,
			want:    KindUnknown,
		},
		{
			name:    "pushed state change without an ID",
			payload: `{"State": 5, "Plug": 7}`,
			want:    KindPushUpdate,
		},
		{
			name:    "non-numeric ID",
			payload: `{"ID": "abc"}`,
			want:    KindUnknown,
		},
		{
			name:    "not JSON at all",
			payload: "hello",
			want:    KindUnknown,
		},
		{
			name:    "empty payload",
			payload: "",
			want:    KindUnknown,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.payload); got != tt.want {
				t.Errorf("Classify(%q) = %v, want %v", tt.payload, got, tt.want)
			}
		})
	}
}

func TestClassifyOrder(t *testing.T) {
	// The broadcast check runs first: a payload starting with "i" is never
	// anything else, even if it contains other markers.
	if got := Classify("i TCH-OK"); got != KindBroadcast {
		t.Errorf("Classify(\"i TCH-OK\") = %v, want %v", got, KindBroadcast)
	}

	// The acknowledgement token wins over JSON shape.
	if got := Classify(`{"ID": "2", "note": "TCH-OK"}`); got != KindAcknowledged {
		t.Errorf("ack token inside JSON = %v, want %v", got, KindAcknowledged)
	}
}

func TestKindString(t *testing.T) {
	tests := []struct {
		kind Kind
		want string
	}{
		{KindBroadcast, "BROADCAST"},
		{KindDiscoveryReply, "DISCOVERY_REPLY"},
		{KindAcknowledged, "ACKNOWLEDGED"},
		{KindRejected, "REJECTED"},
		{KindPushUpdate, "PUSH_UPDATE"},
		{KindReportIdentification, "REPORT_1"},
		{KindReportStatus, "REPORT_2"},
		{KindReportMetering, "REPORT_3"},
		{KindReportHistory, "REPORT_1XX"},
		{KindUnknown, "UNKNOWN"},
		{Kind(99), "UNKNOWN"},
	}

	for _, tt := range tests {
		if got := tt.kind.String(); got != tt.want {
			t.Errorf("Kind(%d).String() = %q, want %q", tt.kind, got, tt.want)
		}
	}
}
