package sandbox

import (
	"context"
	"testing"
	"time"
)

func TestSandbox_Compile(t *testing.T) {
	sb, err := New()
	if err != nil {
		t.Fatalf("Failed to create sandbox: %v", err)
	}

	tests := []struct {
		name    string
		expr    string
		wantErr bool
	}{
		{
			name:    "simple boolean",
			expr:    "true",
			wantErr: false,
		},
		{
			name:    "subject attribute access",
			expr:    `subject.role == "admin"`,
			wantErr: false,
		},
		{
			name:    "user alias",
			expr:    `user.id == resource.ownerId`,
			wantErr: false,
		},
		{
			name:    "subscription limit comparison",
			expr:    `user.stats.formCount >= subscription.limits.forms`,
			wantErr: false,
		},
		{
			name:    "invalid syntax",
			expr:    `this is not a valid expression`,
			wantErr: true,
		},
		{
			name:    "non-boolean result",
			expr:    `subject.id`,
			wantErr: true,
		},
		{
			name:    "unknown binding",
			expr:    `request.ip == "10.0.0.1"`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := sb.Compile(tt.expr)
			if (err != nil) != tt.wantErr {
				t.Errorf("Compile() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestSandbox_Evaluate(t *testing.T) {
	sb, err := New()
	if err != nil {
		t.Fatalf("Failed to create sandbox: %v", err)
	}

	tests := []struct {
		name    string
		expr    string
		input   Input
		want    bool
		wantErr bool
	}{
		{
			name: "ownership via alias",
			expr: `user.id == resource.ownerId`,
			input: Input{
				Subject:  map[string]interface{}{"id": "u1"},
				Resource: map[string]interface{}{"ownerId": "u1"},
			},
			want: true,
		},
		{
			name: "form count at limit",
			expr: `user.stats.formCount >= subscription.limits.forms`,
			input: Input{
				Subject: map[string]interface{}{
					"id":    "u1",
					"stats": map[string]interface{}{"formCount": 10},
				},
				Subscription: map[string]interface{}{
					"limits": map[string]interface{}{"forms": 10},
				},
			},
			want: true,
		},
		{
			name: "form count under limit",
			expr: `user.stats.formCount >= subscription.limits.forms`,
			input: Input{
				Subject: map[string]interface{}{
					"id":    "u1",
					"stats": map[string]interface{}{"formCount": 3},
				},
				Subscription: map[string]interface{}{
					"limits": map[string]interface{}{"forms": 10},
				},
			},
			want: false,
		},
		{
			name: "missing field errors",
			expr: `subject.missing == "x"`,
			input: Input{
				Subject: map[string]interface{}{"id": "u1"},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := sb.Evaluate(context.Background(), tt.expr, tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Evaluate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("Evaluate() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSandbox_CancelledContext(t *testing.T) {
	sb, err := New(WithTimeout(time.Second))
	if err != nil {
		t.Fatalf("Failed to create sandbox: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = sb.Evaluate(ctx, `subject.id == "u1"`, Input{
		Subject: map[string]interface{}{"id": "u1"},
	})
	if err == nil {
		t.Error("expected error for cancelled context")
	}
}

func TestSandbox_ProgramCache(t *testing.T) {
	sb, err := New()
	if err != nil {
		t.Fatalf("Failed to create sandbox: %v", err)
	}

	if _, err := sb.Compile("true"); err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	if _, err := sb.Compile("true"); err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	if got := sb.CacheSize(); got != 1 {
		t.Errorf("CacheSize() = %d, want 1", got)
	}

	sb.ClearCache()
	if got := sb.CacheSize(); got != 0 {
		t.Errorf("CacheSize() after clear = %d, want 0", got)
	}
}
