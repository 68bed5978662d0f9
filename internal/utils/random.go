package utils

import (
	"fmt"
	"math/rand"
	"strings"

	"github.com/mozillazg/go-pinyin"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var commonSurnames = []string{
	"王", "李", "张", "刘", "陈", "杨", "赵", "黄", "周", "吴",
	"徐", "孙", "胡", "朱", "高", "林", "何", "郭", "马", "罗",
}
var commonNameCharacters = []string{
	"伟", "强", "芳", "敏", "静", "丽", "刚", "杰", "娟", "勇",
	"艳", "涛", "明", "军", "磊", "洋", "勇", "霞", "飞", "玲",
	"超", "华", "平", "辉", "梅", "鑫", "龙", "鹏", "玉", "斌",
	"庆", "建", "丹", "彬", "凤", "旭", "宁", "乐", "成", "欣",
}

func GenerateRandomChineseName() string {
	surname := commonSurnames[rand.Intn(len(commonSurnames))]
	nameLength := rand.Intn(2) + 1
	name := ""

	for i := 0; i < nameLength; i++ {
		name += commonNameCharacters[rand.Intn(len(commonNameCharacters))]
	}
	return surname + name
}

// TransliterateName 把中文姓名转成 roster 中的拼音姓和名，输入的姓在前
func TransliterateName(chineseName string) (string, string) {
	pinyinArray := pinyin.LazyConvert(chineseName, nil)
	if len(pinyinArray) == 0 {
		return "", ""
	}

	titleCaser := cases.Title(language.English)

	lastName := titleCaser.String(pinyinArray[0])
	parts := make([]string, 0, len(pinyinArray)-1)
	for _, p := range pinyinArray[1:] {
		parts = append(parts, titleCaser.String(p))
	}
	firstName := strings.Join(parts, " ")

	return firstName, lastName
}

var digits = "0123456789"

func generateDigits(length int) string {
	id := make([]byte, length)
	for i := range id {
		id[i] = digits[rand.Intn(len(digits))]
	}
	return string(id)
}

// GenerateRandomPersonnelID 生成 8 位数字的人员编号
func GenerateRandomPersonnelID() string {
	return fmt.Sprintf("%08d", rand.Intn(100000000))
}

// GenerateRandomDeploymentItemID 生成 10 位数字的排班编号
func GenerateRandomDeploymentItemID() string {
	return generateDigits(10)
}

// GenerateRandomDemandItemID 生成需求编号
func GenerateRandomDemandItemID() string {
	return generateDigits(12)
}

// GenerateRandomCustomerID 生成客户编号
func GenerateRandomCustomerID() string {
	return generateDigits(6)
}
