// Package messages renders user-facing text for domain errors.
package messages

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/text/language"

	"mohaweel/internal/domain"
)

var supported = []language.Tag{language.Arabic, language.English}

var matcher = language.NewMatcher(supported)

// catalog maps locale -> code -> message. Entries containing %s take the
// error detail.
var catalog = map[string]map[string]string{
	"ar": {
		domain.CodeNoImage:        "الرجاء اختيار صورة أولاً.",
		domain.CodeNoPrompt:       "الرجاء كتابة وصف للتعديل المطلوب.",
		domain.CodeInvalidType:    "الرجاء اختيار ملف صورة صالح (JPG, PNG, WebP).",
		domain.CodeTooLarge:       "حجم الصورة كبير جداً. الرجاء اختيار صورة أقل من 5 ميجابايت.",
		domain.CodeEmptyFile:      "الملف المختار فارغ. الرجاء اختيار صورة أخرى.",
		domain.CodeInvalidDataURL: "تعذر قراءة بيانات الصورة. الرجاء اختيار صورة أخرى.",
		domain.CodeNoResponse:     "لم يتم استلام أي استجابة من النموذج.",
		domain.CodeEmptyResponse:  "الاستجابة فارغة.",
		domain.CodeNoImageFound:   "لم يتم العثور على صورة في استجابة النموذج.",
		domain.CodeBadImageData:   "أعاد النموذج صورة تالفة. يرجى المحاولة مرة أخرى.",
		domain.CodeRefused:        "فشل التحويل: %s",
		domain.CodeBlocked:        "تم حظر الطلب بسبب إعدادات الأمان. حاول تغيير الوصف أو الصورة.",
		domain.CodeCredential:     "خطأ في مفتاح API. يرجى التحقق من الصلاحيات.",
		domain.CodeTransport:      "حدث خطأ أثناء معالجة الصورة: %s",
		codeUnknown:               "حدث خطأ أثناء معالجة الصورة. يرجى المحاولة مرة أخرى.",
		CodeSessionNotFound:       "الجلسة غير موجودة أو انتهت صلاحيتها.",
		CodeNoResult:              "لا توجد صورة معدلة للتنزيل بعد.",
		CodeBadRequest:            "الطلب غير صالح.",
	},
	"en": {
		domain.CodeNoImage:        "Please choose an image first.",
		domain.CodeNoPrompt:       "Please describe the edit you want.",
		domain.CodeInvalidType:    "Please choose a valid image file (JPG, PNG, WebP).",
		domain.CodeTooLarge:       "The image is too large. Please choose an image under 5 MB.",
		domain.CodeEmptyFile:      "The selected file is empty. Please choose another image.",
		domain.CodeInvalidDataURL: "The image data could not be read. Please choose another image.",
		domain.CodeNoResponse:     "No response was received from the model.",
		domain.CodeEmptyResponse:  "The response was empty.",
		domain.CodeNoImageFound:   "No image was found in the model response.",
		domain.CodeBadImageData:   "The model returned a corrupted image. Please try again.",
		domain.CodeRefused:        "Transformation failed: %s",
		domain.CodeBlocked:        "The request was blocked by safety settings. Try changing the description or the image.",
		domain.CodeCredential:     "API key error. Please check the service configuration.",
		domain.CodeTransport:      "Something went wrong while processing the image: %s",
		codeUnknown:               "Something went wrong while processing the image. Please try again.",
		CodeSessionNotFound:       "The session does not exist or has expired.",
		CodeNoResult:              "There is no edited image to download yet.",
		CodeBadRequest:            "The request is invalid.",
	},
}

const codeUnknown = "unknown"

// Codes for request-level failures that are not domain errors.
const (
	CodeSessionNotFound = "session_not_found"
	CodeNoResult        = "no_result"
	CodeBadRequest      = "bad_request"
)

// Text returns the localized message for a code, or the generic message
// when the code is unknown.
func Text(locale, code string) string {
	entries := catalog[Normalize(locale)]
	if msg, ok := entries[code]; ok {
		return msg
	}
	return entries[codeUnknown]
}

// Match picks the best supported locale for an Accept-Language style list,
// returning fallback when nothing matches.
func Match(fallback string, preferences ...string) string {
	var tags []language.Tag
	for _, pref := range preferences {
		parsed, _, err := language.ParseAcceptLanguage(pref)
		if err != nil {
			continue
		}
		tags = append(tags, parsed...)
	}
	if len(tags) == 0 {
		return Normalize(fallback)
	}
	_, idx, conf := matcher.Match(tags...)
	if conf == language.No {
		return Normalize(fallback)
	}
	base, _ := supported[idx].Base()
	return base.String()
}

// Normalize maps any locale string onto a supported locale, defaulting to Arabic.
func Normalize(locale string) string {
	locale = strings.ToLower(strings.TrimSpace(locale))
	if _, ok := catalog[locale]; ok {
		return locale
	}
	if tag, err := language.Parse(locale); err == nil {
		base, _ := tag.Base()
		if _, ok := catalog[base.String()]; ok {
			return base.String()
		}
	}
	return "ar"
}

// Render returns the localized message for err.
func Render(locale string, err error) string {
	if err == nil {
		return ""
	}
	entries := catalog[Normalize(locale)]
	var de *domain.Error
	if !errors.As(err, &de) {
		return entries[codeUnknown]
	}
	tmpl, ok := entries[de.Code]
	if !ok {
		return entries[codeUnknown]
	}
	if strings.Contains(tmpl, "%s") {
		detail := de.Detail
		if detail == "" && de.Err != nil {
			detail = de.Err.Error()
		}
		return fmt.Sprintf(tmpl, detail)
	}
	return tmpl
}
