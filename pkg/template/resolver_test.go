package template

import (
	"context"
	"errors"
	"testing"

	"rebooto/pkg/errs"
	"rebooto/pkg/models"
)

func testParams() Params {
	return Params{
		DeviceUID:   "node-17",
		DeviceIP:    "10.3.0.17",
		DeviceModel: "R640",
		Username:    "root",
		Password:    "hunter2",
		Metadata:    map[string]string{"rack": "B4"},
	}
}

func noStoreCreds(ctx context.Context, name string) (*models.Creds, error) {
	return nil, errs.NotFound("creds with name '%s' was not found", name)
}

func TestResolveSubstitutesDeviceAndCredFields(t *testing.T) {
	resolver := NewResolver(testParams(), noStoreCreds)

	got, err := resolver.Resolve(context.Background(),
		"ipmitool -H {device::ip} -U {cred::username} -P {cred::password} chassis power cycle # {device::uid} {device::model} {metadata::rack}")
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}
	want := "ipmitool -H 10.3.0.17 -U root -P hunter2 chassis power cycle # node-17 R640 B4"
	if got != want {
		t.Errorf("Resolve() = %q, want %q", got, want)
	}
}

func TestResolveCredStoreRunsFirst(t *testing.T) {
	lookup := func(ctx context.Context, name string) (*models.Creds, error) {
		if name != "pdu-7" {
			t.Errorf("lookup called with %q, want pdu-7", name)
		}
		return &models.Creds{Name: name, Username: "pdu-admin", Password: "pdu-pass"}, nil
	}
	resolver := NewResolver(testParams(), lookup)

	got, err := resolver.Resolve(context.Background(), "login {cred_store::pdu-7::username}:{cred_store::pdu-7::password} then {cred::username}")
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}
	if got != "login pdu-admin:pdu-pass then root" {
		t.Errorf("Resolve() = %q", got)
	}
}

func TestResolveMissingStoreCred(t *testing.T) {
	resolver := NewResolver(testParams(), noStoreCreds)

	_, err := resolver.Resolve(context.Background(), "{cred_store::ghost::password}")
	var resolutionErr *errs.ResolutionError
	if !errors.As(err, &resolutionErr) {
		t.Fatalf("Resolve() error = %v, want ResolutionError", err)
	}
	if resolutionErr.Reason != ReasonMissingCred {
		t.Errorf("Reason = %q, want %q", resolutionErr.Reason, ReasonMissingCred)
	}
	if resolutionErr.Token != "{cred_store::ghost::password}" {
		t.Errorf("Token = %q", resolutionErr.Token)
	}
}

func TestResolveMissingMetadataKey(t *testing.T) {
	resolver := NewResolver(testParams(), noStoreCreds)

	_, err := resolver.Resolve(context.Background(), "echo {metadata::pdu_port}")
	var resolutionErr *errs.ResolutionError
	if !errors.As(err, &resolutionErr) {
		t.Fatalf("Resolve() error = %v, want ResolutionError", err)
	}
	if resolutionErr.Reason != ReasonMissingMetadata {
		t.Errorf("Reason = %q, want %q", resolutionErr.Reason, ReasonMissingMetadata)
	}
}

func TestResolveLeavesNonTokensAlone(t *testing.T) {
	resolver := NewResolver(testParams(), noStoreCreds)

	in := "awk '{print $1}' /var/log/boot.log # {device::ip}"
	got, err := resolver.Resolve(context.Background(), in)
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}
	if got != "awk '{print $1}' /var/log/boot.log # 10.3.0.17" {
		t.Errorf("Resolve() = %q", got)
	}
}
