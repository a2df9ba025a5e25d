package progress

import (
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Note formats. The English text doubles as the catalog key.
const (
	NoteStarting     = "Starting %s chain: %ds requested, %d segment(s).\n"
	NoteSegment      = "\n--- Segment %d/%d ---\n"
	NoteSubmitting   = "Submitting segment %d...\n"
	NoteTaskCreated  = "Task created: %s\n"
	NoteDownloading  = "Downloading segment %d...\n"
	NoteSaved        = "Segment %d saved.\n"
	NoteExtracting   = "Extracting last frame for continuity...\n"
	NoteStitching    = "\nStitching %d videos...\n"
	NoteFinalSaved   = "Final video saved.\n"
	NotePublished    = "Final video uploaded to object storage.\n"
	NoteCleanedUp    = "Cleaned up %d intermediate record(s).\n"
	NoteAspectSquare = "Square aspect is rendered as portrait.\n"
)

var supported = []language.Tag{
	language.English,
	language.Spanish,
	language.Indonesian,
}

var matcher = language.NewMatcher(supported)

var translations = map[language.Tag]map[string]string{
	language.Spanish: {
		NoteStarting:     "Iniciando cadena %s: %ds solicitados, %d segmento(s).\n",
		NoteSegment:      "\n--- Segmento %d/%d ---\n",
		NoteSubmitting:   "Enviando segmento %d...\n",
		NoteTaskCreated:  "Tarea creada: %s\n",
		NoteDownloading:  "Descargando segmento %d...\n",
		NoteSaved:        "Segmento %d guardado.\n",
		NoteExtracting:   "Extrayendo el último fotograma para continuidad...\n",
		NoteStitching:    "\nUniendo %d videos...\n",
		NoteFinalSaved:   "Video final guardado.\n",
		NotePublished:    "Video final subido al almacenamiento de objetos.\n",
		NoteCleanedUp:    "Se eliminaron %d registro(s) intermedio(s).\n",
		NoteAspectSquare: "El formato cuadrado se genera como vertical.\n",
	},
	language.Indonesian: {
		NoteStarting:     "Memulai rantai %s: %dd diminta, %d segmen.\n",
		NoteSegment:      "\n--- Segmen %d/%d ---\n",
		NoteSubmitting:   "Mengirim segmen %d...\n",
		NoteTaskCreated:  "Tugas dibuat: %s\n",
		NoteDownloading:  "Mengunduh segmen %d...\n",
		NoteSaved:        "Segmen %d tersimpan.\n",
		NoteExtracting:   "Mengambil frame terakhir untuk kesinambungan...\n",
		NoteStitching:    "\nMenggabungkan %d video...\n",
		NoteFinalSaved:   "Video akhir tersimpan.\n",
		NotePublished:    "Video akhir diunggah ke object storage.\n",
		NoteCleanedUp:    "%d catatan sementara dibersihkan.\n",
		NoteAspectSquare: "Rasio persegi dibuat sebagai potret.\n",
	},
}

func init() {
	for tag, msgs := range translations {
		for key, msg := range msgs {
			_ = message.SetString(tag, key, msg)
		}
	}
}

// MatchLocale maps a locale or Accept-Language value onto one of the
// supported languages, defaulting to English.
func MatchLocale(locale string) language.Tag {
	locale = strings.TrimSpace(locale)
	if locale == "" {
		return language.English
	}
	tags, _, err := language.ParseAcceptLanguage(locale)
	if err != nil || len(tags) == 0 {
		tags = []language.Tag{language.Make(locale)}
	}
	_, idx, conf := matcher.Match(tags...)
	if conf == language.No {
		return language.English
	}
	return supported[idx]
}

// Printer returns a message printer for locale.
func Printer(locale string) *message.Printer {
	return message.NewPrinter(MatchLocale(locale))
}
