package query

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/vinhpham24hdev/api-chrome-extension-sub000/internal/models"
)

var caseExportHeader = []string{
	"Case ID", "Title", "Description", "Status", "Priority", "Tags",
	"Assigned To", "Created By", "Screenshots", "Videos", "Total Size",
	"Last Activity", "Created At",
}

// WriteCasesCSV пишет кейсы в CSV. Поля с запятой, кавычкой или переводом
// строки берутся в кавычки, внутренние кавычки удваиваются.
func WriteCasesCSV(w io.Writer, cases []*models.Case) error {
	writer := csv.NewWriter(w)

	if err := writer.Write(caseExportHeader); err != nil {
		return fmt.Errorf("failed to write csv header: %w", err)
	}

	for _, c := range cases {
		lastActivity := ""
		if c.Metadata.LastActivity != nil {
			lastActivity = c.Metadata.LastActivity.UTC().Format(time.RFC3339)
		}

		record := []string{
			c.DisplayID,
			c.Title,
			c.Description,
			c.Status.String(),
			c.Priority.String(),
			strings.Join(c.Tags, ";"),
			c.AssignedTo,
			c.CreatedBy,
			strconv.FormatInt(c.Metadata.TotalScreenshots, 10),
			strconv.FormatInt(c.Metadata.TotalVideos, 10),
			strconv.FormatInt(c.Metadata.TotalFileSize, 10),
			lastActivity,
			c.CreatedAt.UTC().Format(time.RFC3339),
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("failed to write case %s: %w", c.DisplayID, err)
		}
	}

	writer.Flush()
	return writer.Error()
}
