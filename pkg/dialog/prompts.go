package dialog

const (
	promptConfirm       = "اخترت %s. صحيح؟ قول نعم ولا لا."
	promptAskYesNo      = "جاوب بنعم ولا لا."
	promptNotUnderstood = "ما فهمتكش. عاود اختار."
	promptAtHome        = "ما تنجمش ترجع، انت في الرئيسية."
	promptTypeNow       = "تفضل، اكتب."
	promptSubmitted     = "بعثت الطلب."
	promptOpened        = "حاضر، حلّيتها."
	promptNotAvailable  = "العملية هذي مازالت موش متوفرة."
	promptExecFailed    = "صار مشكل في التنفيذ."
	promptWait          = "لحظة، مازلت نخدم."
	promptNoMenu        = "الصفحة هذي ما فيهاش قائمة. قول 1 1 باش ترجع للرئيسية."
	promptMicDenied     = "ما عنديش الإذن باش نسمعك. اسمح للميكروفون وعاود."
	promptEmptyList     = "ما فماش حتى شي."
	promptHelp          = "المساعدة: تنجم تقول رقم الاختيار، وبعد تأكد بنعم ولا لا. قول 1 1 للرئيسية، 2 2 للرجوع، 3 3 للبنك، 4 4 للمنتوجات، 5 5 باش نعاود."
)

// Labels for classifier results that carry slots.
const (
	labelTransferTo = "نحوّل %s دينار لـ %s"
	labelAddItem    = "نزيد %s للسلّة"
	labelSearchItem = "نلوّج على %s"
)

// intentLabels are spoken when confirming a classifier result.
var intentLabels = map[string]string{
	"HOME":          "الرئيسية",
	"LOGIN":         "الدخول",
	"REGISTER":      "تسجيل جديد",
	"BANK":          "البنك",
	"PRODUCTS":      "المنتوجات",
	"BANK_TRANSFER": "نحوّل فلوس",
	"GET_BALANCE":   "نسمّعك رصيدك",
	"BANK_HISTORY":  "نسمّعك آخر العمليات",
	"ADD_ITEM":      "نزيد منتوج للسلّة",
	"CHECK_PRICE":   "نلوّج على منتوج",
	"CART":          "نسمّعك السلّة",
	"HELP":          "المساعدة",
	"REPEAT":        "نعاود القائمة",
	"BACK":          "رجوع",
}
