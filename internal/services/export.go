package services

import (
	"fmt"
	"io"
	"time"

	"cohortboard/internal/models"
	"cohortboard/internal/utils"

	"github.com/xuri/excelize/v2"
)

const weeklySheet = "주차별 현황"

// WeeklyExportFilename is the download name for a given day, e.g.
// 수강생_주차별_현황_20261017.xlsx.
func WeeklyExportFilename(day time.Time) string {
	return fmt.Sprintf("수강생_주차별_현황_%s.xlsx", day.Format("20060102"))
}

// WeeklyExportHeader lists the columns in sheet order. A 제출개수 column is
// only emitted for weeks where some row submitted more than once.
func WeeklyExportHeader(rows []WeeklyStatusRow) []string {
	header := []string{"이름", "이메일", "실명", "전화번호"}
	for _, w := range models.HomeworkWeeks {
		header = append(header, w.Short()+" 제출", w.Short()+" 평가")
		if maxSubmissions(rows, w) > 1 {
			header = append(header, w.Short()+" 제출개수")
		}
	}
	return header
}

// WeeklyExportRecord renders one row in the order of WeeklyExportHeader.
func WeeklyExportRecord(rows []WeeklyStatusRow, r WeeklyStatusRow) []any {
	rec := []any{r.User.Name, r.User.Email, orDash(r.ApprovedName), orDash(utils.FormatPhone(r.ApprovedPhone))}
	for _, w := range models.HomeworkWeeks {
		n := len(r.WeeklyPosts[w])
		if n > 0 {
			rec = append(rec, "O", r.Reviews[w].Label())
		} else {
			rec = append(rec, "X", "-")
		}
		if maxSubmissions(rows, w) > 1 {
			if n > 1 {
				rec = append(rec, n)
			} else {
				rec = append(rec, "")
			}
		}
	}
	return rec
}

// ExportWeeklyStatusXLSX writes the weekly status sheet as an xlsx workbook.
func ExportWeeklyStatusXLSX(w io.Writer, rows []WeeklyStatusRow) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", weeklySheet); err != nil {
		return err
	}

	header := WeeklyExportHeader(rows)
	if err := f.SetSheetRow(weeklySheet, "A1", &header); err != nil {
		return err
	}
	for i, r := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		rec := WeeklyExportRecord(rows, r)
		if err := f.SetSheetRow(weeklySheet, cell, &rec); err != nil {
			return err
		}
	}

	widths := map[string]float64{"A": 12, "B": 25, "C": 12, "D": 15}
	for col, width := range widths {
		if err := f.SetColWidth(weeklySheet, col, col, width); err != nil {
			return err
		}
	}
	if len(header) > 4 {
		last, err := excelize.ColumnNumberToName(len(header))
		if err != nil {
			return err
		}
		if err := f.SetColWidth(weeklySheet, "E", last, 10); err != nil {
			return err
		}
	}

	_, err := f.WriteTo(w)
	return err
}

func maxSubmissions(rows []WeeklyStatusRow, w models.Week) int {
	most := 0
	for _, r := range rows {
		if n := len(r.WeeklyPosts[w]); n > most {
			most = n
		}
	}
	return most
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
