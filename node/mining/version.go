// Copyright (c) 2016-2017 The btcsuite developers
// Copyright (c) 2022 The JaxNetwork developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package mining

import (
	"time"

	"gitlab.com/xpchain/xpcd/types/chaincfg"
)

const (
	// vbTopBits defines the bits to set in the version to signal that the
	// version bits scheme is being used.
	vbTopBits = 0x20000000
)

// DeploymentStarted reports whether the deployment is in its signalling
// window at the given median time.
func DeploymentStarted(deployment *chaincfg.ConsensusDeployment, medianTime time.Time) bool {
	if deployment.AlwaysActive {
		return false
	}
	mtp := uint64(medianTime.Unix())
	return mtp >= deployment.StartTime && mtp < deployment.ExpireTime
}

// DeploymentActive reports whether the rules of a deployment are enforced.
// Only deployments buried at genesis are tracked.
func DeploymentActive(params *chaincfg.Params, id chaincfg.DeploymentID) bool {
	return params.Deployments[id].AlwaysActive
}

// ComputeBlockVersion returns the version of a block built on a tip with the
// given median time: the version bits prefix with the bit of every deployment
// still signalling.
func ComputeBlockVersion(params *chaincfg.Params, medianTime time.Time) int32 {
	expectedVersion := uint32(vbTopBits)
	for id := 0; id < len(params.Deployments); id++ {
		deployment := &params.Deployments[id]
		if DeploymentStarted(deployment, medianTime) {
			expectedVersion |= uint32(1) << deployment.BitNumber
		}
	}
	return int32(expectedVersion)
}
