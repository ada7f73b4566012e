// Package validator normalizes and filters bulk issuance recipient input
// before submission. It is pure: no I/O, no clock, no remote calls.
package validator

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"vcbatch/internal/bulkissue/models"
	id "vcbatch/pkg/domain"
)

// csvColumns is the authoritative CSV schema. CSVTemplate and FromCSV are
// kept in lockstep through this single definition.
var csvColumns = []string{"recipient_did", "recipient_email", "credential_subject", "custom_claims"}

// Rejection pairs an ineligible recipient with the reason it was excluded.
type Rejection struct {
	Recipient models.BulkRecipient `json:"recipient"`
	Reason    string               `json:"reason"`
}

// Result partitions recipient input into the submittable subset and the
// rejected remainder. Validation is fail-open per recipient: valid entries
// proceed even when others are rejected.
type Result struct {
	Valid    []models.BulkRecipient `json:"valid"`
	Rejected []Rejection            `json:"rejected"`
}

// Validate trims identifier whitespace, assigns each eligible recipient its
// correlation ID, and rejects recipients whose DID and email are both empty
// after trimming. No DID or email format checks happen here; format
// validation belongs to the remote issuance API.
func Validate(recipients []models.BulkRecipient) Result {
	var result Result
	for _, recipient := range recipients {
		recipient.RecipientDID = strings.TrimSpace(recipient.RecipientDID)
		recipient.RecipientEmail = strings.TrimSpace(recipient.RecipientEmail)

		if !recipient.HasIdentifier() {
			recipient.Status = models.RecipientError
			recipient.Error = "missing identifier"
			result.Rejected = append(result.Rejected, Rejection{
				Recipient: recipient,
				Reason:    "missing identifier",
			})
			continue
		}

		if recipient.RecipientID.IsNil() {
			recipient.RecipientID = id.NewRecipientID()
		}
		recipient.Status = models.RecipientPending
		result.Valid = append(result.Valid, recipient)
	}
	return result
}

// FromCSV parses raw CSV text into recipient candidates. Parsing is
// all-or-nothing: any structural failure (bad header, wrong column count,
// malformed JSON cell) rejects the whole file, and every row-level problem is
// reported so the caller can fix the file in one pass. Returned candidates
// still go through Validate before submission.
func FromCSV(raw string) ([]models.BulkRecipient, []string) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, []string{"file is empty"}
	}

	reader := csv.NewReader(strings.NewReader(raw))
	reader.FieldsPerRecord = len(csvColumns)

	header, err := reader.Read()
	if err != nil {
		return nil, []string{"row 1: " + csvErrMessage(err)}
	}
	if !headerMatches(header) {
		return nil, []string{fmt.Sprintf("row 1: header must be %q", strings.Join(csvColumns, ","))}
	}

	var (
		recipients []models.BulkRecipient
		problems   []string
	)
	for row := 2; ; row++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			problems = append(problems, fmt.Sprintf("row %d: %s", row, csvErrMessage(err)))
			continue
		}

		recipient := models.BulkRecipient{
			RecipientDID:   strings.TrimSpace(record[0]),
			RecipientEmail: strings.TrimSpace(record[1]),
		}
		if cell := strings.TrimSpace(record[2]); cell != "" {
			if err := json.Unmarshal([]byte(cell), &recipient.CredentialSubject); err != nil {
				problems = append(problems, fmt.Sprintf("row %d: credential_subject is not a JSON object", row))
				continue
			}
		}
		if cell := strings.TrimSpace(record[3]); cell != "" {
			if err := json.Unmarshal([]byte(cell), &recipient.CustomClaims); err != nil {
				problems = append(problems, fmt.Sprintf("row %d: custom_claims is not a JSON object", row))
				continue
			}
		}
		recipients = append(recipients, recipient)
	}

	if len(problems) > 0 {
		return nil, problems
	}
	if len(recipients) == 0 {
		return nil, []string{"file has no recipient rows"}
	}
	return recipients, nil
}

// CSVTemplate returns the downloadable template whose header row is the
// schema contract for FromCSV.
func CSVTemplate() string {
	var b strings.Builder
	w := csv.NewWriter(&b)
	_ = w.Write(csvColumns)
	_ = w.Write([]string{
		"did:example:123",
		"holder@example.com",
		`{"name":"Alice Example"}`,
		`{"department":"engineering"}`,
	})
	w.Flush()
	return b.String()
}

func headerMatches(header []string) bool {
	if len(header) != len(csvColumns) {
		return false
	}
	for i, col := range csvColumns {
		if strings.TrimSpace(strings.ToLower(header[i])) != col {
			return false
		}
	}
	return true
}

// csvErrMessage strips the csv package's positional prefix; positions are
// re-reported with our own row numbering.
func csvErrMessage(err error) string {
	if parseErr, ok := err.(*csv.ParseError); ok {
		return parseErr.Err.Error()
	}
	return err.Error()
}
