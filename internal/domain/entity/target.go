package entity

import "time"

// DeployTarget is a selected network profile with its resolved credential, if the profile needs one.
type DeployTarget struct {
	Profile    NetworkProfile `json:"profile"`
	Credential *Credential    `json:"credential,omitempty"`
}

// ProbeResult describes what a node answered when its endpoint was probed.
type ProbeResult struct {
	Endpoint  string        `json:"endpoint"`
	NetworkID uint64        `json:"networkId"`
	ChainID   uint64        `json:"chainId"`
	Latency   time.Duration `json:"latency"`
}

// CheckResult is the outcome of validating and probing one network.
type CheckResult struct {
	Name     string       `json:"name"`
	Endpoint string       `json:"endpoint"`
	Sender   string       `json:"sender,omitempty"`
	Probe    *ProbeResult `json:"probe,omitempty"`
	Err      error        `json:"-"`
}

// OK reports whether the network passed every check.
func (r CheckResult) OK() bool {
	return r.Err == nil
}
