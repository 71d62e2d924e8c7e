// Command make_call rings the configured human agent number through the
// handoff dialer. Useful for verifying Twilio credentials before a demo.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/spf13/viper"

	"github.com/harunnryd/atena/pkg/handoff"
)

type handoffConfig struct {
	Handoff handoff.Config `mapstructure:"handoff"`
}

func main() {
	configPath := flag.String("config", "examples/techcorp/config.yaml", "")
	to := flag.String("to", "", "override target number")
	flag.Parse()

	cfg, err := loadHandoffConfig(*configPath)
	if err != nil {
		fmt.Println("config error:", err)
		os.Exit(1)
	}
	dialer := handoff.NewDialer(cfg.Handoff)
	if !dialer.Configured() {
		fmt.Println("handoff is not configured: set handoff.account_sid, auth_token, and target_number")
		os.Exit(1)
	}
	sid, err := dialer.Dial(context.Background(), *to)
	if err != nil {
		fmt.Println("call error:", err)
		os.Exit(1)
	}
	fmt.Println("call_sid:", sid)
}

func loadHandoffConfig(path string) (handoffConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return handoffConfig{}, err
	}
	var cfg handoffConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return handoffConfig{}, err
	}
	for _, s := range []*string{&cfg.Handoff.AccountSID, &cfg.Handoff.AuthToken, &cfg.Handoff.CallerID, &cfg.Handoff.TargetNumber, &cfg.Handoff.VoiceURL} {
		*s = os.ExpandEnv(*s)
	}
	return cfg, nil
}
