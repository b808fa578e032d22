package core

import (
	"fmt"
	"strings"
)

const templateHeader = "Process Name,Department,Custom Department,Time Spent,Repetitive Score,Data-Driven Score,Rule-Based Score,High Volume Score,Impact Score,Feasibility Score,Process Notes"

// validCSV returns a template-shaped file with n valid rows.
func validCSV(n int) string {
	var b strings.Builder
	b.WriteString(templateHeader + "\n")
	for i := 1; i <= n; i++ {
		fmt.Fprintf(&b, "Process %d,Finance,,%d.5,%d,7,6,5,8,9,\"Notes, with comma %d\"\n", i, i, (i%10)+1, i)
	}
	return b.String()
}

func csvFile(name, content string) FileHandle {
	return FileHandle{Name: name, ContentType: "text/csv", Size: int64(len(content)), Data: []byte(content)}
}
