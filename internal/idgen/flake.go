// Copyright (C) 2025-2026 CardinalHQ, Inc
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, version 3.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

// Package idgen produces identifiers for process instances and for the
// operations they log.
package idgen

import (
	"errors"
	"math/rand/v2"
	"os"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/sony/sonyflake"
)

var (
	instancesOnce sync.Once
	instances     *flake
)

// flake hands out time-ordered ids. A nil sf means no machine id could be
// found and ids are random.
type flake struct {
	sf *sonyflake.Sonyflake
}

// newFlake builds a generator. A nil machineID uses sonyflake's default,
// the low 16 bits of the host's private IPv4 address.
func newFlake(machineID func() (uint16, error)) (*flake, error) {
	sf, err := sonyflake.New(sonyflake.Settings{
		StartTime: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		MachineID: machineID,
	})
	if err != nil {
		return nil, err
	}
	if sf == nil {
		return nil, errors.New("failed to create Sonyflake instance")
	}
	return &flake{sf: sf}, nil
}

// firstFlake returns a generator from the first machine id source that
// works, or a random generator when none does.
func firstFlake(sources ...func() (uint16, error)) *flake {
	for _, source := range sources {
		if f, err := newFlake(source); err == nil {
			return f
		}
	}
	return &flake{}
}

// hostMachineID derives a machine id from the hostname for hosts without
// a private IPv4 address.
func hostMachineID() (uint16, error) {
	host, err := os.Hostname()
	if err != nil {
		return 0, err
	}
	return uint16(xxhash.Sum64String(host)), nil
}

// next returns a non-negative id that increases roughly in time order. If
// the generator is exhausted or unavailable it falls back to a random id.
func (f *flake) next() int64 {
	if f.sf == nil {
		return rand.Int64()
	}
	v, err := f.sf.NextID()
	if err != nil {
		return rand.Int64()
	}
	return int64(v)
}

// InstanceID returns a new id identifying this process in logs and metrics.
func InstanceID() int64 {
	instancesOnce.Do(func() {
		instances = firstFlake(nil, hostMachineID)
	})
	return instances.next()
}
