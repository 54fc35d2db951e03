package validation

import (
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/installmarket/installmarket-backend/internal/models"
)

// Константы валидации
const (
	MinJobTitleLength       = 5
	MaxJobTitleLength       = 200
	MinJobDescriptionLength = 20
	MaxJobDescriptionLength = 5000
	MaxLocationLength       = 200
	MaxCategoryLength       = 100
	MaxCoverLetterLength    = 1000
	MaxScopeItems           = 20
	MaxScopeItemLength      = 200
	MinNameLength           = 2
	MaxNameLength           = 100
	MinPasswordLength       = 8
	MaxReasonLength         = 2000
	MaxJobPrice             = 10000000.0
)

var emailRegexp = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

// ValidateLength проверяет длину строки в рунах.
func ValidateLength(fieldName, value string, min, max int) error {
	length := utf8.RuneCountInString(value)
	if min > 0 && length < min {
		return fmt.Errorf("%s должен быть не менее %d символов", fieldName, min)
	}
	if max > 0 && length > max {
		return fmt.Errorf("%s должен быть не более %d символов", fieldName, max)
	}
	return nil
}

// ValidateEmail проверяет формат email.
func ValidateEmail(email string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return fmt.Errorf("email обязателен")
	}
	if !emailRegexp.MatchString(email) {
		return fmt.Errorf("некорректный формат email")
	}
	return nil
}

// ValidatePassword проверяет минимальные требования к паролю.
func ValidatePassword(password string) error {
	if utf8.RuneCountInString(password) < MinPasswordLength {
		return fmt.Errorf("пароль должен быть не менее %d символов", MinPasswordLength)
	}
	return nil
}

// JobInput содержит поля заявки, проверяемые при создании и редактировании.
type JobInput struct {
	Title        string
	Description  string
	Category     string
	Location     string
	PriceMin     *float64
	PriceMax     *float64
	Deadline     time.Time
	JobStartDate *time.Time
}

// ValidateJobInput проверяет поля заявки.
func ValidateJobInput(in JobInput, now time.Time) error {
	if err := ValidateLength("заголовок", strings.TrimSpace(in.Title), MinJobTitleLength, MaxJobTitleLength); err != nil {
		return err
	}
	if err := ValidateLength("описание", strings.TrimSpace(in.Description), MinJobDescriptionLength, MaxJobDescriptionLength); err != nil {
		return err
	}
	if err := ValidateLength("категория", in.Category, 1, MaxCategoryLength); err != nil {
		return err
	}
	if err := ValidateLength("адрес", in.Location, 1, MaxLocationLength); err != nil {
		return err
	}
	if in.PriceMin != nil {
		if *in.PriceMin < 0 || *in.PriceMin > MaxJobPrice {
			return fmt.Errorf("нижняя граница бюджета вне допустимого диапазона")
		}
	}
	if in.PriceMax != nil {
		if *in.PriceMax <= 0 || *in.PriceMax > MaxJobPrice {
			return fmt.Errorf("верхняя граница бюджета вне допустимого диапазона")
		}
		if in.PriceMin != nil && *in.PriceMax < *in.PriceMin {
			return fmt.Errorf("верхняя граница бюджета меньше нижней")
		}
	}
	if !in.Deadline.After(now) {
		return fmt.Errorf("срок приёма откликов должен быть в будущем")
	}
	if in.JobStartDate != nil && in.JobStartDate.Before(now) {
		return fmt.Errorf("дата начала работ должна быть в будущем")
	}
	return nil
}

// ValidateBid проверяет отклик монтажника против бюджета заявки.
// Нижний порог фиксирован, верхний — удвоенная верхняя граница бюджета.
func ValidateBid(amount float64, coverLetter string, scopeItems []string, priceMax *float64) error {
	if amount < models.MinBidAmount {
		return fmt.Errorf("ставка не может быть меньше %d", models.MinBidAmount)
	}
	if priceMax != nil && amount > 2**priceMax {
		return fmt.Errorf("ставка не может превышать удвоенный бюджет заявки")
	}
	if err := ValidateLength("сопроводительное письмо", coverLetter, 0, MaxCoverLetterLength); err != nil {
		return err
	}
	if len(scopeItems) > MaxScopeItems {
		return fmt.Errorf("слишком много пунктов объёма работ")
	}
	for _, item := range scopeItems {
		if err := ValidateLength("пункт объёма работ", item, 1, MaxScopeItemLength); err != nil {
			return err
		}
	}
	return nil
}

// ValidateOtp проверяет формат кода подтверждения: ровно шесть цифр.
func ValidateOtp(code string) error {
	if len(code) != 6 {
		return fmt.Errorf("код подтверждения должен состоять из 6 цифр")
	}
	for _, c := range code {
		if c < '0' || c > '9' {
			return fmt.Errorf("код подтверждения должен состоять из 6 цифр")
		}
	}
	return nil
}

// ValidateReason проверяет текстовую причину (отмена, спор, возврат на доработку).
func ValidateReason(fieldName, reason string) error {
	return ValidateLength(fieldName, strings.TrimSpace(reason), 3, MaxReasonLength)
}
