package core

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"testing"
)

// ============================================================================
// Cell Conversion Benchmarks
// ============================================================================

// BenchmarkParseScore covers every score cell of every row.
func BenchmarkParseScore(b *testing.B) {
	testCases := []string{"7", " 10 ", "1", "15", "7.5", "", "abc"}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		for _, tc := range testCases {
			ParseScore(tc)
		}
	}
}

func BenchmarkParseHours(b *testing.B) {
	testCases := []string{"2", "2.5", "3 hours", "1.5h", "4 hrs", "", "n/a"}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		for _, tc := range testCases {
			ParseHours(tc)
		}
	}
}

func BenchmarkCleanCell(b *testing.B) {
	testCases := []string{
		"Invoice processing",
		"  padded value  ",
		`"quoted"`,
		"\ufeffBOM prefixed",
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		for _, tc := range testCases {
			CleanCell(tc)
		}
	}
}

func BenchmarkMakeHeaderIndex(b *testing.B) {
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		MakeHeaderIndex(RequiredColumns)
	}
}

// ============================================================================
// Parse and Validate Benchmarks
// ============================================================================

func BenchmarkParseText(b *testing.B) {
	for _, rows := range []int{100, 10_000} {
		data := validCSV(rows)
		b.Run(fmt.Sprintf("rows=%d", rows), func(b *testing.B) {
			b.SetBytes(int64(len(data)))
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				if _, err := ParseText(data); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

// BenchmarkCleanReader measures BOM stripping and UTF-8 sanitizing on a
// file with invalid bytes sprinkled through it.
func BenchmarkCleanReader(b *testing.B) {
	var buf bytes.Buffer
	buf.Write(utf8BOM)
	for i := 0; i < 10_000; i++ {
		buf.WriteString("Process,Finance,\xff\xfe,2,5,5,5,5,5,5,notes\n")
	}
	data := buf.Bytes()

	b.SetBytes(int64(len(data)))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := io.Copy(io.Discard, NewCleanReader(bytes.NewReader(data))); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkValidate(b *testing.B) {
	res, err := ParseText(validCSV(1_000))
	if err != nil {
		b.Fatal(err)
	}
	v := NewSchemaValidator()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		v.Validate(res.Headers, res.Rows)
	}
}

// BenchmarkValidate_AllScoresInvalid is the worst case: every score cell
// produces a row error.
func BenchmarkValidate_AllScoresInvalid(b *testing.B) {
	var sb strings.Builder
	sb.WriteString(templateHeader + "\n")
	for i := 0; i < 1_000; i++ {
		sb.WriteString("P,Finance,,1,0,11,x,12,-1,99,\n")
	}
	res, err := ParseText(sb.String())
	if err != nil {
		b.Fatal(err)
	}
	v := NewSchemaValidator()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		v.Validate(res.Headers, res.Rows)
	}
}

func BenchmarkRecordsFromRows(b *testing.B) {
	res, err := ParseText(validCSV(1_000))
	if err != nil {
		b.Fatal(err)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		RecordsFromRows(res.Rows)
	}
}

// ============================================================================
// Gateway Benchmarks
// ============================================================================

func BenchmarkGatewayImportRows(b *testing.B) {
	res, err := ParseText(validCSV(1_000))
	if err != nil {
		b.Fatal(err)
	}
	records := RecordsFromRows(res.Rows)
	ic := ImportContext{ProjectID: "bench", SessionID: "bench"}

	for _, concurrency := range []int{1, 4, 16} {
		b.Run(fmt.Sprintf("concurrency=%d", concurrency), func(b *testing.B) {
			gw := NewGateway(&fakeStore{}, GatewayConfig{Concurrency: concurrency})
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				out := gw.ImportRows(context.Background(), ic, records, nil)
				if out.TransportErr != nil {
					b.Fatal(out.TransportErr)
				}
			}
		})
	}
}

// ============================================================================
// Parallel Benchmarks
// ============================================================================

func BenchmarkParseScoreParallel(b *testing.B) {
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			ParseScore("7")
		}
	})
}

func BenchmarkCleanCellParallel(b *testing.B) {
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			CleanCell("  Invoice processing  ")
		}
	})
}

// BenchmarkConversionsAllocs reports allocations for converting one full row.
func BenchmarkConversionsAllocs(b *testing.B) {
	res, err := ParseText(validCSV(1))
	if err != nil {
		b.Fatal(err)
	}
	row := res.Rows[0]

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		RecordFromRow(row)
	}
}
