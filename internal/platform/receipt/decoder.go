// Package receipt decodes the UKE electronic claim export format: a
// line-oriented, comma-delimited text file in which the first field of each
// line is a record-type tag. Every tag has a fixed field schema; there is no
// positional scanning. Input is expected to be already-decoded text
// (transcoding from Shift_JIS is the caller's concern).
package receipt

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Record tags. Two-letter tags carry claim content; pure-digit tags are
// exchange control records and are skipped, except the return/rejection
// record which is surfaced on the decoded file.
const (
	TagClinic       = "IR" // clinic header, first record of the file
	TagPatient      = "RE" // patient claim, starts a new accumulator
	TagInsurer      = "HO" // health insurer detail
	TagPublicPayer  = "KO" // public expense program detail
	TagToothChart   = "SS" // tooth chart entry
	TagProcedure    = "SI" // procedure line
	TagComment      = "CO" // comment
	TagRunningTotal = "GO" // file trailer with claim and point totals

	returnRecordTag = "17" // return/rejection control record
)

// Field positions per record type, 1-based after the tag.
//
//	IR: 1 payer kind, 2 prefecture, 3 point table, 4 facility code,
//	    6 facility name, 7 billing month, 8 phone
//	RE: 1 sequence no, 2 receipt kind, 3 treatment month, 4 name,
//	    5 sex, 6 birth date, 7 burden ratio
//	HO: 1 insurer number, 2 symbol, 3 number, 4 treatment days, 5 total points
//	KO: 1 payer number, 2 recipient number, 3 treatment days, 4 total points
//	SS: 1 tooth part, 2 condition
//	SI: 1 category, 2 burden kind, 3 procedure code, 4 quantity,
//	    5 points, 6 repetition count (empty count means 1)
//	CO: 1 category, 2 comment code, 3 text
//	GO: 1 total claims, 2 total points
//	17: 1 sequence no, 2 reason code, 3 reason text

// File is a fully decoded claim export.
type File struct {
	Clinic   ClinicHeader
	Patients []PatientClaim
	Totals   *RunningTotal
	Returns  []ReturnInfo
}

// ClinicHeader is the IR record.
type ClinicHeader struct {
	PayerKind    string // 1 = social insurance, 2 = national health insurance
	Prefecture   string
	PointTable   string // 3 = dental
	FacilityCode string
	FacilityName string
	BillingMonth string // GYYMM era-based year-month, kept verbatim
	Phone        string
}

// PatientClaim accumulates everything between one RE record and the next.
type PatientClaim struct {
	SequenceNo     int
	ReceiptKind    string
	TreatmentMonth string
	Name           string
	Sex            string
	BirthDate      string
	BurdenRatio    string
	Insurance      *InsurerDetail
	PublicExpenses []PublicExpense
	ToothChart     []ToothRecord
	Procedures     []ProcedureLine
	Comments       []Comment
}

type InsurerDetail struct {
	InsurerNumber string
	Symbol        string
	Number        string
	TreatmentDays int
	TotalPoints   int
}

type PublicExpense struct {
	PayerNumber     string
	RecipientNumber string
	TreatmentDays   int
	TotalPoints     int
}

type ToothRecord struct {
	Part      string
	Condition string
}

type ProcedureLine struct {
	Category   string
	BurdenKind string
	Code       string
	Quantity   string
	Points     int
	Count      int
}

type Comment struct {
	Category string
	Code     string
	Text     string
}

type RunningTotal struct {
	TotalClaims int
	TotalPoints int
}

// ReturnInfo carries the reason a previously submitted claim was sent back.
type ReturnInfo struct {
	SequenceNo int
	ReasonCode string
	Reason     string
}

// Decode parses a claim export. The first content record must be IR. An RE
// record flushes the previous patient accumulator; the last accumulator is
// flushed at end of input.
func Decode(r io.Reader) (*File, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	file := &File{}
	var current *PatientClaim
	sawClinic := false
	lineNo := 0

	flush := func() {
		if current != nil {
			file.Patients = append(file.Patients, *current)
			current = nil
		}
	}

	for scanner.Scan() {
		lineNo++
		line := strings.TrimRight(scanner.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}

		fields := strings.Split(line, ",")
		tag := fields[0]

		if isDigits(tag) {
			if tag == returnRecordTag {
				file.Returns = append(file.Returns, ReturnInfo{
					SequenceNo: num(field(fields, 1)),
					ReasonCode: field(fields, 2),
					Reason:     field(fields, 3),
				})
			}
			continue
		}

		if !sawClinic && tag != TagClinic {
			return nil, fmt.Errorf("receipt: line %d: first record must be %s, got %q", lineNo, TagClinic, tag)
		}

		switch tag {
		case TagClinic:
			sawClinic = true
			file.Clinic = ClinicHeader{
				PayerKind:    field(fields, 1),
				Prefecture:   field(fields, 2),
				PointTable:   field(fields, 3),
				FacilityCode: field(fields, 4),
				FacilityName: field(fields, 6),
				BillingMonth: field(fields, 7),
				Phone:        field(fields, 8),
			}

		case TagPatient:
			flush()
			current = &PatientClaim{
				SequenceNo:     num(field(fields, 1)),
				ReceiptKind:    field(fields, 2),
				TreatmentMonth: field(fields, 3),
				Name:           field(fields, 4),
				Sex:            field(fields, 5),
				BirthDate:      field(fields, 6),
				BurdenRatio:    field(fields, 7),
			}

		case TagInsurer:
			if current == nil {
				return nil, fmt.Errorf("receipt: line %d: %s record before first %s", lineNo, tag, TagPatient)
			}
			current.Insurance = &InsurerDetail{
				InsurerNumber: field(fields, 1),
				Symbol:        field(fields, 2),
				Number:        field(fields, 3),
				TreatmentDays: num(field(fields, 4)),
				TotalPoints:   num(field(fields, 5)),
			}

		case TagPublicPayer:
			if current == nil {
				return nil, fmt.Errorf("receipt: line %d: %s record before first %s", lineNo, tag, TagPatient)
			}
			current.PublicExpenses = append(current.PublicExpenses, PublicExpense{
				PayerNumber:     field(fields, 1),
				RecipientNumber: field(fields, 2),
				TreatmentDays:   num(field(fields, 3)),
				TotalPoints:     num(field(fields, 4)),
			})

		case TagToothChart:
			if current == nil {
				return nil, fmt.Errorf("receipt: line %d: %s record before first %s", lineNo, tag, TagPatient)
			}
			current.ToothChart = append(current.ToothChart, ToothRecord{
				Part:      field(fields, 1),
				Condition: field(fields, 2),
			})

		case TagProcedure:
			if current == nil {
				return nil, fmt.Errorf("receipt: line %d: %s record before first %s", lineNo, tag, TagPatient)
			}
			count := num(field(fields, 6))
			if count == 0 {
				count = 1
			}
			current.Procedures = append(current.Procedures, ProcedureLine{
				Category:   field(fields, 1),
				BurdenKind: field(fields, 2),
				Code:       field(fields, 3),
				Quantity:   field(fields, 4),
				Points:     num(field(fields, 5)),
				Count:      count,
			})

		case TagComment:
			if current == nil {
				return nil, fmt.Errorf("receipt: line %d: %s record before first %s", lineNo, tag, TagPatient)
			}
			current.Comments = append(current.Comments, Comment{
				Category: field(fields, 1),
				Code:     field(fields, 2),
				Text:     field(fields, 3),
			})

		case TagRunningTotal:
			file.Totals = &RunningTotal{
				TotalClaims: num(field(fields, 1)),
				TotalPoints: num(field(fields, 2)),
			}

		default:
			return nil, fmt.Errorf("receipt: line %d: unknown record tag %q", lineNo, tag)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("receipt: read input: %w", err)
	}
	if !sawClinic {
		return nil, fmt.Errorf("receipt: input is empty")
	}

	flush()
	return file, nil
}

// field returns the value at a 1-based position after the tag, or "".
func field(fields []string, pos int) string {
	if pos < 1 || pos >= len(fields) {
		return ""
	}
	return strings.TrimSpace(fields[pos])
}

// num parses a numeric field leniently. Empty or malformed values decode to
// zero; the format leaves optional numeric fields blank.
func num(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
