package routes

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestURLHelpers(t *testing.T) {
	tests := []struct {
		name string
		got  string
		want string
	}{
		{name: "health", got: HealthCheckURL(), want: "/health"},
		{name: "metrics", got: MetricsURL(), want: "/metrics"},
		{name: "list jobs", got: GetJobsURL(nil), want: "/api/v1/jobs"},
		{name: "list jobs filtered", got: GetJobsURL(url.Values{"status": {"failed"}}), want: "/api/v1/jobs?status=failed"},
		{name: "get job", got: GetJobURL("abc"), want: "/api/v1/jobs/abc"},
		{name: "create job", got: CreateJobURL(), want: "/api/v1/jobs"},
		{name: "advance job", got: AdvanceJobURL("abc"), want: "/api/v1/jobs/abc/advance"},
		{name: "restart job", got: RestartJobURL("abc"), want: "/api/v1/jobs/abc/restart"},
		{name: "retry job", got: RetryJobURL("abc"), want: "/api/v1/jobs/abc/retry"},
		{name: "webhook", got: WebhookURL("render-complete"), want: "/api/v1/webhooks/render-complete"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.got)
		})
	}
}

func TestBuildURL_UnknownRoute(t *testing.T) {
	assert.Empty(t, BuildURL("NoSuchRoute", nil, nil))
}
