package config

import (
	"context"
	"os"
	"reflect"

	"testing"
)

func defaultTestConfig() *FleetConfig {
	c := new()
	return c
}

func TestFleetConfig_Load(t *testing.T) {
	tests := []struct {
		name       string
		contents   string
		dataDir    string
		mutate     func(*FleetConfig)
		wantErr    bool
	}{
		{
			"defaults",
			``,
			"",
			func(c *FleetConfig) {},
			false,
		},
		{
			"environment set",
			``,
			"/my-dir",
			func(c *FleetConfig) { c.BasePath = "/my-dir" },
			false,
		},
		{
			"invalid port",
			"api:\n  port: 100000\n",
			"",
			nil,
			true,
		},
		{
			"valid UUID",
			`cluster_uuid: 6d56b4e7-8df0-4bd3-b428-4a5bff6852eb`,
			"",
			func(c *FleetConfig) { c.ClusterUUID = "6d56b4e7-8df0-4bd3-b428-4a5bff6852eb" },
			false,
		},
		{
			"invalid UUID",
			`cluster_uuid: i-dont-know-what-a-uuid-is`,
			"",
			nil,
			true,
		},
		{
			"heartbeat timeout must exceed interval",
			"heartbeat_interval: 10\nheartbeat_timeout: 5\n",
			"",
			nil,
			true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if len(tt.dataDir) > 0 {
				os.Setenv(baseDirEnvVarname, tt.dataDir)
				defer os.Unsetenv(baseDirEnvVarname)
			}

			f, _ := os.CreateTemp(t.TempDir(), "config_test")
			_, _ = f.Write([]byte(tt.contents))
			f.Close()

			err := loadGlobal(context.TODO(), f.Name())
			if (err != nil) != tt.wantErr {
				t.Fatalf("FleetConfig.loadGlobal() error = %v, wantErr %v", err, tt.wantErr)
			}

			if !tt.wantErr {
				want := defaultTestConfig()
				tt.mutate(want)
				if !reflect.DeepEqual(Config, want) {
					t.Errorf("FleetConfig.loadGlobal() got %v, wants %v", Config, want)
				}
			}
		})
	}
}

func TestFleetConfig_SaveAndReload(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*FleetConfig)
		wantErr bool
	}{
		{
			"defaults",
			func(c *FleetConfig) {},
			false,
		},
		{
			"custom host",
			func(c *FleetConfig) { c.Host = "conductor-1.cluster.example" },
			false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			want := defaultTestConfig()
			tt.mutate(want)
			*Config = *want

			f, _ := os.CreateTemp(t.TempDir(), "config_test")
			f.Close()

			if err := saveGlobal(context.TODO(), f.Name()); (err != nil) != tt.wantErr {
				t.Fatalf("FleetConfig.Save() error = %v, wantErr %v", err, tt.wantErr)
			}

			if err := loadGlobal(context.TODO(), f.Name()); (err != nil) != tt.wantErr {
				t.Fatalf("FleetConfig.Load() error = %v, wantErr %v", err, tt.wantErr)
			}

			if !tt.wantErr && !reflect.DeepEqual(Config, want) {
				t.Errorf("FleetConfig.Load() got %v, wants %v", Config, want)
			}
		})
	}
}
