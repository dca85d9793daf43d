package services

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"strings"

	"cohortboard/internal/models"
	"cohortboard/internal/utils"

	"gorm.io/gorm"
)

// ApprovedPageSize is the fixed page size of the approved-user list.
const ApprovedPageSize = 30

const (
	VerifiedAll   = "all"
	VerifiedTrue  = "true"
	VerifiedFalse = "false"
)

type ApprovedUserFilter struct {
	Search   string
	Verified string // all | true | false
	Page     int
}

type ApprovedUserPage struct {
	Items      []models.ApprovedUser `json:"items"`
	Total      int64                 `json:"total"`
	Page       int                   `json:"page"`
	TotalPages int                   `json:"total_pages"`
}

type ApprovedUserInput struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

type ApprovedUserStats struct {
	Total      int64 `json:"total"`
	Verified   int64 `json:"verified"`
	Unverified int64 `json:"unverified"`
}

// BulkRow is the validation outcome of one candidate row. Row is 1-based.
type BulkRow struct {
	Row     int    `json:"row"`
	Name    string `json:"name"`
	Phone   string `json:"phone"`
	Skipped bool   `json:"skipped,omitempty"`
	Error   string `json:"error,omitempty"`
}

func (r BulkRow) OK() bool { return !r.Skipped && r.Error == "" }

type BulkResult struct {
	Success int      `json:"success"`
	Failed  int      `json:"failed"`
	Errors  []string `json:"errors"`
}

type ApprovedUserService struct {
	db *gorm.DB
}

func NewApprovedUserService(db *gorm.DB) *ApprovedUserService {
	return &ApprovedUserService{db: db}
}

func (s *ApprovedUserService) List(ctx context.Context, f ApprovedUserFilter) (*ApprovedUserPage, error) {
	page := f.Page
	if page < 1 {
		page = 1
	}

	query := s.db.WithContext(ctx).Model(&models.ApprovedUser{})
	if search := strings.TrimSpace(f.Search); search != "" {
		like := "%" + strings.ToLower(search) + "%"
		if digits := utils.PhoneDigits(search); digits != "" {
			query = query.Where("LOWER(name) LIKE ? OR LOWER(phone) LIKE ? OR phone LIKE ?", like, like, "%"+digits+"%")
		} else {
			query = query.Where("LOWER(name) LIKE ? OR LOWER(phone) LIKE ?", like, like)
		}
	}
	switch f.Verified {
	case VerifiedTrue:
		query = query.Where("is_verified = ?", true)
	case VerifiedFalse:
		query = query.Where("is_verified = ?", false)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, storeError(err)
	}

	items := []models.ApprovedUser{}
	err := query.Order("created_at DESC").Order("id").
		Offset((page - 1) * ApprovedPageSize).
		Limit(ApprovedPageSize).
		Find(&items).Error
	if err != nil {
		return nil, storeError(err)
	}

	return &ApprovedUserPage{
		Items:      items,
		Total:      total,
		Page:       page,
		TotalPages: utils.TotalPages(total, ApprovedPageSize),
	}, nil
}

func (s *ApprovedUserService) Get(ctx context.Context, id string) (*models.ApprovedUser, error) {
	var au models.ApprovedUser
	if err := s.db.WithContext(ctx).First(&au, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound("승인 사용자를 찾을 수 없습니다.")
		}
		return nil, storeError(err)
	}
	return &au, nil
}

// Create adds one (name, phone) pair after normalizing the phone.
func (s *ApprovedUserService) Create(ctx context.Context, in ApprovedUserInput) (*models.ApprovedUser, error) {
	name, phone, err := cleanInput(in)
	if err != nil {
		return nil, err
	}
	if err := s.checkDuplicate(ctx, name, phone, ""); err != nil {
		return nil, err
	}

	au := models.ApprovedUser{Name: name, Phone: phone}
	if err := s.db.WithContext(ctx).Create(&au).Error; err != nil {
		return nil, storeError(err)
	}
	return &au, nil
}

// Update changes name and phone only. The verification binding is left as is.
func (s *ApprovedUserService) Update(ctx context.Context, id string, in ApprovedUserInput) (*models.ApprovedUser, error) {
	name, phone, err := cleanInput(in)
	if err != nil {
		return nil, err
	}
	au, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.checkDuplicate(ctx, name, phone, id); err != nil {
		return nil, err
	}

	err = s.db.WithContext(ctx).Model(au).
		Updates(map[string]any{"name": name, "phone": phone}).Error
	if err != nil {
		return nil, storeError(err)
	}
	return au, nil
}

// Delete removes the row unconditionally. A bound User is not touched; it
// simply stops passing IsVerified.
func (s *ApprovedUserService) Delete(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Delete(&models.ApprovedUser{}, "id = ?", id)
	if res.Error != nil {
		return storeError(res.Error)
	}
	if res.RowsAffected == 0 {
		return notFound("승인 사용자를 찾을 수 없습니다.")
	}
	return nil
}

func (s *ApprovedUserService) Stats(ctx context.Context) (*ApprovedUserStats, error) {
	var st ApprovedUserStats
	db := s.db.WithContext(ctx).Model(&models.ApprovedUser{})
	if err := db.Count(&st.Total).Error; err != nil {
		return nil, storeError(err)
	}
	err := s.db.WithContext(ctx).Model(&models.ApprovedUser{}).
		Where("is_verified = ?", true).Count(&st.Verified).Error
	if err != nil {
		return nil, storeError(err)
	}
	st.Unverified = st.Total - st.Verified
	return &st, nil
}

// ValidateBulk checks every row on its own. Fully blank rows are marked
// skipped; the first occurrence of a pair inside the batch wins.
func (s *ApprovedUserService) ValidateBulk(ctx context.Context, rows []ApprovedUserInput) ([]BulkRow, error) {
	existing, err := s.existingKeys(ctx)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]int, len(rows))
	out := make([]BulkRow, len(rows))
	for i, in := range rows {
		name := strings.TrimSpace(in.Name)
		rawPhone := strings.TrimSpace(in.Phone)
		r := BulkRow{Row: i + 1, Name: name, Phone: rawPhone}

		switch {
		case name == "" && rawPhone == "":
			r.Skipped = true
		case name == "":
			r.Error = "이름을 입력해주세요"
		case rawPhone == "":
			r.Error = "전화번호를 입력해주세요"
		default:
			phone, err := utils.NormalizePhone(rawPhone)
			if err != nil {
				r.Error = err.Error()
				break
			}
			r.Phone = phone
			key := pairKey(name, phone)
			if first, ok := seen[key]; ok {
				r.Error = fmt.Sprintf("중복 (%d번째 행과 동일)", first)
			} else if existing[key] {
				seen[key] = r.Row
				r.Error = "이미 등록된 사용자입니다"
			} else {
				seen[key] = r.Row
			}
		}
		out[i] = r
	}
	return out, nil
}

// BulkInsert stores the rows that pass ValidateBulk in one statement.
func (s *ApprovedUserService) BulkInsert(ctx context.Context, rows []ApprovedUserInput) (*BulkResult, error) {
	checked, err := s.ValidateBulk(ctx, rows)
	if err != nil {
		return nil, err
	}

	res := &BulkResult{Errors: []string{}}
	var batch []models.ApprovedUser
	submitted := 0
	for _, r := range checked {
		if r.Skipped {
			continue
		}
		submitted++
		if r.Error != "" {
			res.Failed++
			res.Errors = append(res.Errors, fmt.Sprintf("%d번째 행: %s", r.Row, r.Error))
			continue
		}
		batch = append(batch, models.ApprovedUser{Name: r.Name, Phone: r.Phone})
	}

	if len(batch) == 0 {
		return res, nil
	}
	if err := s.db.WithContext(ctx).Create(&batch).Error; err != nil {
		// nothing from the batch was stored
		res.Success = 0
		res.Failed = submitted
		res.Errors = append(res.Errors, "일괄 등록 실패: "+err.Error())
		return res, nil
	}
	res.Success = len(batch)
	return res, nil
}

// ParseTSV reads pasted spreadsheet text: name<TAB>phone per line. A header
// row whose first cell mentions 이름 or name is dropped, as are blank lines.
func ParseTSV(text string) []ApprovedUserInput {
	var rows []ApprovedUserInput
	sc := bufio.NewScanner(strings.NewReader(text))
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		cells := strings.Split(line, "\t")
		in := ApprovedUserInput{Name: strings.TrimSpace(cells[0])}
		if len(cells) > 1 {
			in.Phone = strings.TrimSpace(cells[1])
		}
		rows = append(rows, in)
	}

	if len(rows) > 0 {
		first := strings.ToLower(rows[0].Name)
		if strings.Contains(first, "이름") || strings.Contains(first, "name") {
			rows = rows[1:]
		}
	}
	return rows
}

func (s *ApprovedUserService) checkDuplicate(ctx context.Context, name, phone, exceptID string) error {
	q := s.db.WithContext(ctx).Model(&models.ApprovedUser{}).
		Where("name = ? AND phone = ?", name, phone)
	if exceptID != "" {
		q = q.Where("id <> ?", exceptID)
	}
	var n int64
	if err := q.Count(&n).Error; err != nil {
		return storeError(err)
	}
	if n > 0 {
		return newError(KindDuplicate, "이미 등록된 사용자입니다.", nil)
	}
	return nil
}

func (s *ApprovedUserService) existingKeys(ctx context.Context) (map[string]bool, error) {
	var all []models.ApprovedUser
	if err := s.db.WithContext(ctx).Select("name", "phone").Find(&all).Error; err != nil {
		return nil, storeError(err)
	}
	keys := make(map[string]bool, len(all))
	for _, au := range all {
		keys[pairKey(au.Name, au.Phone)] = true
	}
	return keys, nil
}

func cleanInput(in ApprovedUserInput) (string, string, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return "", "", invalidFormat("이름을 입력해주세요.")
	}
	if strings.TrimSpace(in.Phone) == "" {
		return "", "", invalidFormat("전화번호를 입력해주세요.")
	}
	phone, err := utils.NormalizePhone(in.Phone)
	if err != nil {
		return "", "", newError(KindInvalidFormat, err.Error(), err)
	}
	return name, phone, nil
}

func pairKey(name, phone string) string {
	return name + "\x00" + phone
}
