// SPDX-License-Identifier: Apache-2.0

package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
)

const idDelimiter = "_"

// DeriveRecordID computes the content-addressed identifier for a record:
// sha256 over the identity fields joined with "_" in a fixed order, hex
// encoded. Quantity does not participate, so resubmissions that differ only
// in quantity map to the same record.
//
// Inputs are used verbatim (case- and whitespace-sensitive). A field that
// itself contains the delimiter can collide with a different split of the
// same concatenation; this is a known limitation, kept for compatibility
// with ids already issued.
func DeriveRecordID(projectName, registry string, vintage int, serialNumber string) string {
	joined := strings.Join([]string{
		projectName,
		registry,
		strconv.Itoa(vintage),
		serialNumber,
	}, idDelimiter)

	sum := sha256.Sum256([]byte(joined))
	return hex.EncodeToString(sum[:])
}
