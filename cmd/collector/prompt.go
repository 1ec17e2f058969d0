package main

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"fundbot/pkg/config"
	"fundbot/pkg/interval"
	"fundbot/pkg/timing"
)

// promptCollection 交互式询问起止日期与周期，直接回车使用当前配置
func promptCollection(in io.Reader, out io.Writer, c *config.CollectionConfig) error {
	r := bufio.NewReader(in)

	ask := func(label, current string, check func(string) error) (string, error) {
		for {
			def := current
			if def == "" {
				def = "默认"
			}
			fmt.Fprintf(out, "%s [%s]: ", label, def)
			line, err := r.ReadString('\n')
			line = strings.TrimSpace(line)
			if err != nil && err != io.EOF {
				return "", err
			}
			if line == "" {
				return current, nil
			}
			if cerr := check(line); cerr != nil {
				fmt.Fprintf(out, "输入无效: %v\n", cerr)
				if err == io.EOF {
					return current, nil
				}
				continue
			}
			return line, nil
		}
	}

	checkDate := func(s string) error {
		_, err := timing.ParseDate(s)
		return err
	}
	// 周期不会被拒绝，不受支持时提示实际使用的日线周期
	noteInterval := func(s string) error {
		if fallbacks := interval.Resolve(s).Fallbacks(); fallbacks != nil {
			fmt.Fprintf(out, "周期 %q 部分数据源不支持，将回退到: %v\n", s, fallbacks)
		}
		return nil
	}

	var err error
	if c.Start, err = ask("起始日期 (YYYY-MM-DD)", c.Start, checkDate); err != nil {
		return err
	}
	if c.End, err = ask("结束日期 (YYYY-MM-DD)", c.End, checkDate); err != nil {
		return err
	}
	if c.Interval, err = ask("采集周期 (如 1d, 1wk, 1mo)", c.Interval, noteInterval); err != nil {
		return err
	}
	return nil
}
