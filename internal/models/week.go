package models

import "errors"

// Week is the closed set of post categories. Stored and matched by its exact label.
type Week string

const (
	Week1  Week = "1주차 과제"
	Week2  Week = "2주차 과제"
	Week3  Week = "3주차 과제"
	Week4  Week = "4주차 과제"
	Week5  Week = "5주차 과제"
	Week6  Week = "6주차 과제"
	Notice Week = "공지"
)

var ErrUnknownWeek = errors.New("unknown week label")

// HomeworkWeeks in display order.
var HomeworkWeeks = []Week{Week1, Week2, Week3, Week4, Week5, Week6}

// AllWeeks is every category a post may carry.
var AllWeeks = append(append([]Week{}, HomeworkWeeks...), Notice)

func ParseWeek(label string) (Week, error) {
	for _, w := range AllWeeks {
		if string(w) == label {
			return w, nil
		}
	}
	return "", ErrUnknownWeek
}

func (w Week) IsHomework() bool {
	for _, h := range HomeworkWeeks {
		if w == h {
			return true
		}
	}
	return false
}

// Short drops the " 과제" suffix: "1주차 과제" -> "1주차".
func (w Week) Short() string {
	const suffix = " 과제"
	s := string(w)
	if len(s) > len(suffix) && s[len(s)-len(suffix):] == suffix {
		return s[:len(s)-len(suffix)]
	}
	return s
}
