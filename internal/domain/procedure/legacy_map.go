package procedure

// legacyCodeMap translates clinic-internal shorthand codes carried over from
// the previous charting system into official 9-digit codes. Entries not in
// this map fall back to the kubun/sub-code master lookup.
var legacyCodeMap = map[string]string{
	"SHOSHIN":  "301000110", // 初診料
	"SAISHIN":  "301000210", // 再診料
	"P-KEN":    "302000110", // 歯周病検査
	"P-BASIC":  "304000110", // 歯周基本治療
	"SRP-1":    "304000210", // スケーリング・ルートプレーニング 1/3顎
	"SRP-2":    "304000220",
	"SRP-3":    "304000230",
	"CR":       "307000110", // コンポジットレジン充填
	"CR-KASAN": "307000115", // 充填加算
	"PULP":     "308000110", // 抜髄
	"RCT":      "308000210", // 感染根管処置
	"RCF":      "308000310", // 根管充填
	"EXT":      "309000110", // 抜歯
	"FMC":      "310000110", // 全部金属冠
	"INLAY":    "310000210", // インレー
	"DENT-ADJ": "311000110", // 義歯調整
	"PANO":     "313000310", // パノラマX線撮影
	"DENTAL-X": "313000110", // 歯科デンタルX線撮影
	"FLUOR":    "312000110", // フッ化物歯面塗布
}
